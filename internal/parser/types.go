package parser

type RecordType uint16

const (
	RTA     RecordType = 1
	RTNS    RecordType = 2
	RTCNAME RecordType = 5
	RTTXT   RecordType = 16
	RTAAAA  RecordType = 28
)

type RecordClass uint16

const (
	RCIN RecordClass = 1
)

const (
	QRMask     = 0x8000
	OpcodeMask = 0x7800
	AAMask     = 0x0400
	TCMask     = 0x0200
	RDMask     = 0x0100
	RAMask     = 0x0080
	ZMask      = 0x0070
	RCodeMask  = 0x000F
)

const PointerMask = 0xC0

// QueryFlags is the flags word sent on every outgoing query: standard
// query, recursion desired.
const QueryFlags uint16 = 0x0100

// The two flag patterns accepted on a response: standard response with
// recursion available, with and without the authoritative bit.
const (
	FlagsResponse              uint16 = 0x8180
	FlagsAuthoritativeResponse uint16 = 0x8580
)

// MaxLabelLen is the longest label a question name may carry.
const MaxLabelLen = 63

// MaxNameLen bounds the encoded question name, terminator included.
const MaxNameLen = 255

// AddressLen is the RDLENGTH of an IPv4 A record.
const AddressLen = 4

type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Answer is one resource record from the answer section. Data holds the
// raw RDATA; only A/IN records are ever consulted by callers.
type Answer struct {
	Type     RecordType
	Class    RecordClass
	TTL      uint32
	RDLength uint16
	Data     []byte
}

type Response struct {
	Header  Header
	Answers []Answer
}

type dnsReader struct {
	data []byte
	pos  int
}

type dnsSerializer struct {
	data []byte
}
