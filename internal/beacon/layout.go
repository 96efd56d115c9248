package beacon

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Well-known advertisement layouts.
const (
	LayoutIBeacon      = "m:0-3=4c000215,i:4-19,i:20-21,i:22-23,p:24-24"
	LayoutEstimote     = "m:2-3=0215,i:4-19,i:20-21,i:22-23,p:24-24"
	LayoutAltBeacon    = "m:2-3=beac,i:4-19,i:20-21,i:22-23,p:24-24,d:25-25"
	LayoutEddystoneTLM = "x,s:0-1=feaa,m:2-2=20,d:3-3,d:4-5,d:6-7,d:8-11,d:12-15"
	LayoutEddystoneUID = "s:0-1=feaa,m:2-2=00,p:3-3:-41,i:4-13,i:14-19"
	LayoutEddystoneURL = "s:0-1=feaa,m:2-2=10,p:3-3:-41,i:4-20v"
)

var (
	termIdentifier = regexp.MustCompile(`^i:(\d+)-(\d+)([blv]*)$`)
	termMatcher    = regexp.MustCompile(`^m:(\d+)-(\d+)=([0-9A-Fa-f]+)$`)
	termService    = regexp.MustCompile(`^s:(\d+)-(\d+)=([0-9A-Fa-f]+)$`)
	termData       = regexp.MustCompile(`^d:(\d+)-(\d+)([bl]*)$`)
	termPower      = regexp.MustCompile(`^p:(\d+)-(\d+)(?::(-?\d+))?$`)
)

var (
	ErrNoMatcher    = errors.New("beacon layout needs a matching type expression with a prefix of 'm:'")
	ErrNoIdentifier = errors.New("beacon layout needs at least one identifier offset with a prefix of 'i:'")
	ErrNoPower      = errors.New("beacon layout needs a power byte offset with a prefix of 'p:'")
)

type span struct {
	start, end   int
	littleEndian bool
	variable     bool
}

// Parser decodes advertisement PDUs according to one beacon layout.
type Parser struct {
	layout string

	matchStart int
	matcher    []byte

	hasService   bool
	serviceStart int
	service      []byte // big-endian as written in the layout

	ids  []span
	data []span

	hasPower        bool
	power           span
	powerCorrection int

	extra bool
}

// ParseLayout compiles a comma separated layout such as LayoutIBeacon.
func ParseLayout(layout string) (*Parser, error) {
	p := &Parser{}
	var terms []string
	hasMatcher := false

	for _, raw := range strings.Split(layout, ",") {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		terms = append(terms, term)

		switch {
		case term == "x":
			p.extra = true

		case termMatcher.MatchString(term):
			m := termMatcher.FindStringSubmatch(term)
			start, end, err := parseRange(term, m[1], m[2])
			if err != nil {
				return nil, err
			}
			val, err := parseHexValue(term, m[3], end-start+1)
			if err != nil {
				return nil, err
			}
			p.matchStart, p.matcher = start, val
			hasMatcher = true

		case termService.MatchString(term):
			m := termService.FindStringSubmatch(term)
			start, end, err := parseRange(term, m[1], m[2])
			if err != nil {
				return nil, err
			}
			if end-start+1 != 2 {
				return nil, fmt.Errorf("cannot parse beacon layout term: %s (only 16-bit service UUIDs are supported)", term)
			}
			val, err := parseHexValue(term, m[3], 2)
			if err != nil {
				return nil, err
			}
			p.hasService, p.serviceStart, p.service = true, start, val

		case termIdentifier.MatchString(term):
			m := termIdentifier.FindStringSubmatch(term)
			start, end, err := parseRange(term, m[1], m[2])
			if err != nil {
				return nil, err
			}
			p.ids = append(p.ids, span{
				start:        start,
				end:          end,
				littleEndian: strings.Contains(m[3], "l"),
				variable:     strings.Contains(m[3], "v"),
			})

		case termData.MatchString(term):
			m := termData.FindStringSubmatch(term)
			start, end, err := parseRange(term, m[1], m[2])
			if err != nil {
				return nil, err
			}
			if end-start+1 > 8 {
				return nil, fmt.Errorf("cannot parse beacon layout term: %s (data fields are at most 8 bytes)", term)
			}
			p.data = append(p.data, span{start: start, end: end, littleEndian: strings.Contains(m[3], "l")})

		case termPower.MatchString(term):
			m := termPower.FindStringSubmatch(term)
			start, end, err := parseRange(term, m[1], m[2])
			if err != nil {
				return nil, err
			}
			if m[3] != "" {
				corr, err := strconv.Atoi(m[3])
				if err != nil {
					return nil, fmt.Errorf("cannot parse beacon layout term: %s", term)
				}
				p.powerCorrection = corr
			}
			p.hasPower, p.power = true, span{start: start, end: end}

		default:
			return nil, fmt.Errorf("cannot parse beacon layout term: %s", term)
		}
	}

	if !hasMatcher {
		return nil, ErrNoMatcher
	}
	if !p.extra {
		if len(p.ids) == 0 {
			return nil, ErrNoIdentifier
		}
		if !p.hasPower {
			return nil, ErrNoPower
		}
	}
	p.layout = strings.Join(terms, ",")
	return p, nil
}

func parseRange(term, a, b string) (int, int, error) {
	start, err1 := strconv.Atoi(a)
	end, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil || end < start {
		return 0, 0, fmt.Errorf("cannot parse beacon layout term: %s", term)
	}
	return start, end, nil
}

func parseHexValue(term, digits string, size int) ([]byte, error) {
	if len(digits) != size*2 {
		return nil, fmt.Errorf("cannot parse beacon layout term: %s (value length does not match offsets)", term)
	}
	val, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("cannot parse beacon layout term: %s", term)
	}
	return val, nil
}

// Layout returns the canonical layout string.
func (p *Parser) Layout() string { return p.layout }

// Extra reports whether this layout describes a data-only frame that
// complements another beacon (Eddystone-TLM).
func (p *Parser) Extra() bool { return p.extra }

// ServiceUUID returns the 16-bit service UUID matched by the layout, or 0.
func (p *Parser) ServiceUUID() uint16 {
	if !p.hasService {
		return 0
	}
	return uint16(p.service[0])<<8 | uint16(p.service[1])
}

// Equal reports whether both parsers were built from the same layout.
func (p *Parser) Equal(other *Parser) bool {
	return p != nil && other != nil && p.layout == other.layout
}

// Decode extracts a beacon from a PDU. Manufacturer PDUs start with the
// little-endian company ID, service PDUs with the little-endian 16-bit
// service UUID. The returned beacon carries identifiers, data fields, tx
// power and layout; signal and hardware fields are left to the caller.
func (p *Parser) Decode(pdu []byte, serviceData bool) (Beacon, bool) {
	if serviceData != p.hasService {
		return Beacon{}, false
	}

	if p.hasService {
		if p.serviceStart+len(p.service) > len(pdu) {
			return Beacon{}, false
		}
		// on-air order is little-endian
		for i := range p.service {
			if pdu[p.serviceStart+i] != p.service[len(p.service)-1-i] {
				return Beacon{}, false
			}
		}
	}

	if p.matchStart+len(p.matcher) > len(pdu) {
		return Beacon{}, false
	}
	if !bytes.Equal(pdu[p.matchStart:p.matchStart+len(p.matcher)], p.matcher) {
		return Beacon{}, false
	}

	b := Beacon{Layout: p.layout}

	for _, s := range p.ids {
		end := s.end
		if s.variable && end >= len(pdu) {
			end = len(pdu) - 1
		}
		if s.start >= len(pdu) || end >= len(pdu) {
			return Beacon{}, false
		}
		b.Identifiers = append(b.Identifiers, IdentifierFromBytes(pdu[s.start:end+1], s.littleEndian))
	}

	for _, s := range p.data {
		b.DataFields = append(b.DataFields, readUint(pdu, s))
	}

	if p.hasPower {
		if p.power.start >= len(pdu) {
			return Beacon{}, false
		}
		b.TxPower = int(int8(pdu[p.power.start])) + p.powerCorrection
	}

	if p.hasService {
		b.ServiceUUID = p.ServiceUUID()
	} else if len(pdu) >= 2 {
		b.ManufacturerID = uint16(pdu[0]) | uint16(pdu[1])<<8
	}
	return b, true
}

// readUint reads an unsigned field; bytes beyond the PDU read as zero.
func readUint(pdu []byte, s span) uint64 {
	var v uint64
	n := s.end - s.start + 1
	for i := 0; i < n; i++ {
		idx := s.start + i
		if s.littleEndian {
			idx = s.end - i
		}
		var x byte
		if idx < len(pdu) {
			x = pdu[idx]
		}
		v = v<<8 | uint64(x)
	}
	return v
}
