package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Port is a TCP port range. Its text form is a single port (`443`), a range (`8000-8100`) or `all_tcp`.
type Port struct {
	From int
	To   int
}

const allTcp = "all_tcp"

func SinglePort(p int) Port {
	return Port{From: p, To: p}
}

func AllTcp() Port {
	return Port{From: 0, To: 65535}
}

func (p Port) IsAllTcp() bool {
	return p == AllTcp()
}

func (p Port) String() string {
	switch {
	case p.IsAllTcp():
		return allTcp
	case p.From == p.To:
		return strconv.Itoa(p.From)
	default:
		return fmt.Sprintf("%d-%d", p.From, p.To)
	}
}

func (p Port) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Port) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == allTcp {
		*p = AllTcp()
		return nil
	}
	from, to, isRange := strings.Cut(s, "-")
	f, err := parsePortNumber(from)
	if err != nil {
		return err
	}
	t := f
	if isRange {
		t, err = parsePortNumber(to)
		if err != nil {
			return err
		}
		if t < f {
			return fmt.Errorf("invalid port range %q: end is before start", s)
		}
	}
	*p = Port{From: f, To: t}
	return nil
}

func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return p.UnmarshalText([]byte(s))
	}
	return p.UnmarshalText(data)
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("invalid port %d: out of range", n)
	}
	return n, nil
}
