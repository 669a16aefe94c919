package parser

import (
	"encoding/binary"
	"errors"
)

func (r *dnsReader) readUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, errors.New("Out of bounds while reading uint16")
	}
	val := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return val, nil
}

func (r *dnsReader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, errors.New("Out of bounds while reading uint32")
	}
	val := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return val, nil
}

func (r *dnsReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.New("Out of bounds while reading byte")
	}
	val := r.data[r.pos]
	r.pos++
	return val, nil
}

func (r *dnsReader) readBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("Cannot read negative number of bytes")
	}
	if r.pos+n > len(r.data) {
		return nil, errors.New("Out of bounds while reading bytes")
	}
	val := r.data[r.pos : r.pos+n]
	r.pos += n
	return val, nil
}

// skipName advances past an encoded name without materializing it. A
// compression pointer terminates the name; the pointed-at labels are
// never followed since no caller needs the text.
func (r *dnsReader) skipName() error {
	for {
		lead, err := r.readByte()
		if err != nil {
			return err
		}
		if lead&PointerMask == PointerMask {
			_, err := r.readByte()
			return err
		}
		if lead == 0 {
			return nil
		}
		if _, err := r.readBytes(int(lead)); err != nil {
			return errors.New("Name not long enough")
		}
	}
}

func (h Header) GetQR() bool {
	return h.Flags&QRMask != 0
}

func (h Header) GetOpcode() uint8 {
	return uint8((h.Flags & OpcodeMask) >> 11)
}

func (h Header) GetAA() bool {
	return h.Flags&AAMask != 0
}

func (h Header) GetTC() bool {
	return h.Flags&TCMask != 0
}

func (h Header) GetRD() bool {
	return h.Flags&RDMask != 0
}

func (h Header) GetRA() bool {
	return h.Flags&RAMask != 0
}

func (h Header) GetRCode() uint8 {
	return uint8(h.Flags & RCodeMask)
}

// ValidateResponse checks a parsed response header against the query it
// is supposed to answer. Any violation makes the whole response
// unusable for that attempt.
func (h Header) ValidateResponse(wantID uint16) error {
	if h.ID != wantID {
		return errors.New("Transaction ID does not match query")
	}
	if h.Flags != FlagsResponse && h.Flags != FlagsAuthoritativeResponse {
		return errors.New("Unexpected flags in response")
	}
	if h.QDCount < 1 {
		return errors.New("QDCOUNT not set in response")
	}
	if h.ANCount < 1 {
		return errors.New("No answers in response")
	}
	return nil
}

func (r *dnsReader) parseHeader() (Header, error) {
	h := Header{}
	var err error
	if h.ID, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	if h.Flags, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	if h.QDCount, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	if h.ANCount, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	if h.NSCount, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	if h.ARCount, err = r.readUint16(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (r *dnsReader) skipQuestion() error {
	if err := r.skipName(); err != nil {
		return err
	}
	// QTYPE and QCLASS
	if _, err := r.readBytes(4); err != nil {
		return err
	}
	return nil
}

func (r *dnsReader) parseAnswer() (Answer, error) {
	a := Answer{}
	var err error
	if err = r.skipName(); err != nil {
		return Answer{}, err
	}
	if t, err := r.readUint16(); err != nil {
		return Answer{}, err
	} else {
		a.Type = RecordType(t)
	}
	if c, err := r.readUint16(); err != nil {
		return Answer{}, err
	} else {
		a.Class = RecordClass(c)
	}
	if a.TTL, err = r.readUint32(); err != nil {
		return Answer{}, err
	}
	if a.RDLength, err = r.readUint16(); err != nil {
		return Answer{}, err
	}
	if a.Data, err = r.readBytes(int(a.RDLength)); err != nil {
		return Answer{}, errors.New("RDATA shorter than RDLENGTH")
	}
	return a, nil
}

// ParseResponse decodes the header, skips the echoed question section
// and walks the answer records of a received packet. Structural
// validation only; acceptance checks live in Header.ValidateResponse.
func ParseResponse(data []byte) (Response, error) {
	resp := Response{}
	var err error
	r := dnsReader{data: data}
	if resp.Header, err = r.parseHeader(); err != nil {
		return Response{}, err
	}
	for i := 0; i < int(resp.Header.QDCount); i++ {
		if err := r.skipQuestion(); err != nil {
			return Response{}, err
		}
	}
	resp.Answers = make([]Answer, 0, resp.Header.ANCount)
	for i := 0; i < int(resp.Header.ANCount); i++ {
		a, err := r.parseAnswer()
		if err != nil {
			return Response{}, err
		}
		resp.Answers = append(resp.Answers, a)
	}
	return resp, nil
}

// FirstA returns the address of the first A/IN answer carrying exactly
// four bytes of RDATA. Records of any other type, class or length are
// passed over.
func (resp Response) FirstA() ([4]byte, bool) {
	for _, a := range resp.Answers {
		if a.Type == RTA && a.Class == RCIN && a.RDLength == AddressLen {
			var addr [4]byte
			copy(addr[:], a.Data)
			return addr, true
		}
	}
	return [4]byte{}, false
}
