package parser

import (
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		expectError   bool
		expectAnswers int
		expectAddr    [4]byte
		expectMatch   bool
	}{
		{
			name: "valid A response with compressed answer name",
			data: []byte{
				0x12, 0x34, // ID
				0x81, 0x80, // flags: response, RD, RA
				0x00, 0x01, 0x00, 0x01, // QDCOUNT=1, ANCOUNT=1
				0x00, 0x00, 0x00, 0x00, // NSCOUNT=0, ARCOUNT=0
				0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01, // QTYPE A
				0x00, 0x01, // QCLASS IN
				0xC0, 0x0C, // answer name: pointer to offset 12
				0x00, 0x01, // TYPE A
				0x00, 0x01, // CLASS IN
				0x00, 0x00, 0x00, 0x3C, // TTL
				0x00, 0x04, // RDLENGTH
				0x5D, 0xB8, 0xD8, 0x22, // 93.184.216.34
			},
			expectAnswers: 1,
			expectAddr:    [4]byte{93, 184, 216, 34},
			expectMatch:   true,
		},
		{
			name: "valid A response with literal answer name",
			data: []byte{
				0xAB, 0xCD,
				0x81, 0x80,
				0x00, 0x01, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x00,
				0x04, 't', 'e', 's', 't',
				0x05, 'l', 'o', 'c', 'a', 'l',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
				0x04, 't', 'e', 's', 't',
				0x05, 'l', 'o', 'c', 'a', 'l',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x0A,
				0x00, 0x04,
				0x0A, 0x00, 0x00, 0x01, // 10.0.0.1
			},
			expectAnswers: 1,
			expectAddr:    [4]byte{10, 0, 0, 1},
			expectMatch:   true,
		},
		{
			name: "CNAME answer before the A record is skipped",
			data: []byte{
				0x12, 0x34,
				0x81, 0x80,
				0x00, 0x01, 0x00, 0x02, // ANCOUNT=2
				0x00, 0x00, 0x00, 0x00,
				0x03, 'w', 'w', 'w',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
				0xC0, 0x0C, // first answer: CNAME
				0x00, 0x05,
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x3C,
				0x00, 0x02,
				0xC0, 0x10, // rdata: pointer name
				0xC0, 0x0C, // second answer: A
				0x00, 0x01,
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x3C,
				0x00, 0x04,
				0x01, 0x02, 0x03, 0x04,
			},
			expectAnswers: 2,
			expectAddr:    [4]byte{1, 2, 3, 4},
			expectMatch:   true,
		},
		{
			name: "no A record among answers",
			data: []byte{
				0x12, 0x34,
				0x81, 0x80,
				0x00, 0x01, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x00,
				0x03, 'w', 'w', 'w',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
				0xC0, 0x0C,
				0x00, 0x10, // TXT
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x3C,
				0x00, 0x03,
				0x02, 'h', 'i',
			},
			expectAnswers: 1,
			expectMatch:   false,
		},
		{
			name: "truncated header",
			data: []byte{
				0x12, 0x34, 0x81, 0x80, 0x00, 0x01,
			},
			expectError: true,
		},
		{
			name: "unterminated question name",
			data: []byte{
				0x12, 0x34,
				0x81, 0x80,
				0x00, 0x01, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x00,
				0x07, 'e', 'x', 'a', 'm',
			},
			expectError: true,
		},
		{
			name: "RDLENGTH past end of packet",
			data: []byte{
				0x12, 0x34,
				0x81, 0x80,
				0x00, 0x01, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x00,
				0x03, 'w', 'w', 'w',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
				0xC0, 0x0C,
				0x00, 0x01,
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x3C,
				0x00, 0x08, // claims 8 bytes
				0x01, 0x02, 0x03, 0x04, // only 4 present
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.data)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(resp.Answers) != tt.expectAnswers {
				t.Fatalf("expected %d answers, got %d", tt.expectAnswers, len(resp.Answers))
			}
			addr, ok := resp.FirstA()
			if ok != tt.expectMatch {
				t.Fatalf("FirstA match = %v, want %v", ok, tt.expectMatch)
			}
			if ok && addr != tt.expectAddr {
				t.Errorf("expected address %v, got %v", tt.expectAddr, addr)
			}
		})
	}
}

func TestValidateResponse(t *testing.T) {
	base := Header{ID: 0x1234, Flags: 0x8180, QDCount: 1, ANCount: 1}

	tests := []struct {
		name        string
		mutate      func(h *Header)
		wantID      uint16
		expectError bool
	}{
		{
			name:   "standard response accepted",
			mutate: func(h *Header) {},
			wantID: 0x1234,
		},
		{
			name:   "authoritative response accepted",
			mutate: func(h *Header) { h.Flags = 0x8580 },
			wantID: 0x1234,
		},
		{
			name:        "transaction ID mismatch",
			mutate:      func(h *Header) {},
			wantID:      0x4321,
			expectError: true,
		},
		{
			name:        "query flags rejected",
			mutate:      func(h *Header) { h.Flags = 0x0100 },
			wantID:      0x1234,
			expectError: true,
		},
		{
			name:        "NXDOMAIN rcode rejected",
			mutate:      func(h *Header) { h.Flags = 0x8183 },
			wantID:      0x1234,
			expectError: true,
		},
		{
			name:        "zero QDCOUNT rejected",
			mutate:      func(h *Header) { h.QDCount = 0 },
			wantID:      0x1234,
			expectError: true,
		},
		{
			name:        "zero ANCOUNT rejected",
			mutate:      func(h *Header) { h.ANCount = 0 },
			wantID:      0x1234,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := base
			tt.mutate(&h)
			err := h.ValidateResponse(tt.wantID)
			if tt.expectError && err == nil {
				t.Errorf("expected error, got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestHeaderFlagAccessors(t *testing.T) {
	h := Header{Flags: 0x8583}
	if !h.GetQR() {
		t.Errorf("expected QR set")
	}
	if !h.GetAA() {
		t.Errorf("expected AA set")
	}
	if h.GetTC() {
		t.Errorf("expected TC clear")
	}
	if !h.GetRD() {
		t.Errorf("expected RD set")
	}
	if !h.GetRA() {
		t.Errorf("expected RA set")
	}
	if h.GetOpcode() != 0 {
		t.Errorf("expected opcode 0, got %d", h.GetOpcode())
	}
	if h.GetRCode() != 3 {
		t.Errorf("expected rcode 3, got %d", h.GetRCode())
	}
}
