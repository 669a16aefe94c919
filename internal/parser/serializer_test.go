package parser

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildQuery_SerializesToExpectedBytes(t *testing.T) {
	tests := []struct {
		name         string
		id           uint16
		hostname     string
		expectedWire []byte
	}{
		{
			name:     "A query for example.com",
			id:       0x1234,
			hostname: "example.com",
			expectedWire: []byte{
				0x12, 0x34, // ID
				0x01, 0x00, // flags: standard query, RD
				0x00, 0x01, 0x00, 0x00, // QDCOUNT=1, ANCOUNT=0
				0x00, 0x00, 0x00, 0x00, // NSCOUNT=0, ARCOUNT=0
				0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01, // Type A
				0x00, 0x01, // Class IN
			},
		},
		{
			name:     "trailing dot is tolerated",
			id:       0xABCD,
			hostname: "test.local.",
			expectedWire: []byte{
				0xAB, 0xCD,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x04, 't', 'e', 's', 't',
				0x05, 'l', 'o', 'c', 'a', 'l',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
			},
		},
		{
			name:     "single label",
			id:       0x0001,
			hostname: "router",
			expectedWire: []byte{
				0x00, 0x01,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x06, 'r', 'o', 'u', 't', 'e', 'r',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := BuildQuery(tt.id, tt.hostname)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(wire, tt.expectedWire) {
				t.Errorf("expected wire %v, got %v", tt.expectedWire, wire)
			}
		})
	}
}

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		name        string
		hostname    string
		expectError bool
	}{
		{name: "plain name", hostname: "example.com"},
		{name: "trailing dot", hostname: "example.com."},
		{name: "63-byte label", hostname: strings.Repeat("a", 63) + ".com"},
		{name: "empty", hostname: "", expectError: true},
		{name: "only a dot", hostname: ".", expectError: true},
		{name: "empty label", hostname: "a..b", expectError: true},
		{name: "leading dot", hostname: ".example.com", expectError: true},
		{name: "64-byte label", hostname: strings.Repeat("a", 64) + ".com", expectError: true},
		{
			name:        "name over 255 bytes",
			hostname:    strings.Repeat(strings.Repeat("a", 62)+".", 5),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostname(tt.hostname)
			if tt.expectError && err == nil {
				t.Errorf("expected error, got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
