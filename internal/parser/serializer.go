package parser

import (
	"encoding/binary"
	"errors"
	"strings"
)

func (s *dnsSerializer) writeUint16(v uint16) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	s.data = append(s.data, buf...)
}

func (s *dnsSerializer) writeByte(v byte) {
	s.data = append(s.data, v)
}

func (s *dnsSerializer) writeLabel(v string) {
	s.writeByte(byte(len(v)))
	s.data = append(s.data, v...)
}

// ValidateHostname rejects names that cannot be encoded as a question:
// empty names, empty labels and labels longer than 63 bytes. A single
// trailing dot is tolerated.
func ValidateHostname(hostname string) error {
	hostname = strings.TrimSuffix(hostname, ".")
	if hostname == "" {
		return errors.New("Empty hostname")
	}
	if len(hostname)+2 > MaxNameLen {
		return errors.New("Hostname too long")
	}
	for _, label := range strings.Split(hostname, ".") {
		if label == "" {
			return errors.New("Empty label in hostname")
		}
		if len(label) > MaxLabelLen {
			return errors.New("Label longer than 63 bytes")
		}
	}
	return nil
}

// BuildQuery serializes a single-question A/IN query for hostname under
// the given transaction ID.
func BuildQuery(id uint16, hostname string) ([]byte, error) {
	if err := ValidateHostname(hostname); err != nil {
		return nil, err
	}
	s := dnsSerializer{}
	s.writeUint16(id)
	s.writeUint16(QueryFlags)
	s.writeUint16(1) // QDCOUNT
	s.writeUint16(0) // ANCOUNT
	s.writeUint16(0) // NSCOUNT
	s.writeUint16(0) // ARCOUNT
	for _, label := range strings.Split(strings.TrimSuffix(hostname, "."), ".") {
		s.writeLabel(label)
	}
	s.writeByte(0)
	s.writeUint16(uint16(RTA))
	s.writeUint16(uint16(RCIN))
	return s.data, nil
}
