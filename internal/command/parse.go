package command

import (
	"strconv"
	"strings"
)

// Parse tokenizes one console line and parses it. An empty line yields
// (nil, nil).
func Parse(line string) (Request, error) {
	args := tokenize(line)
	if len(args) == 0 {
		return nil, nil
	}
	return ParseArgs(args)
}

// ParseArgs parses a command word followed by its flags.
func ParseArgs(args []string) (Request, error) {
	if len(args) == 0 {
		return nil, usagef("", "missing command")
	}
	word := strings.ToLower(args[0])
	pos, vals, bools := parseFlags(args[1:])
	f := &flagArgs{cmd: word, vals: vals, bools: bools}

	var (
		req Request
		err error
	)
	switch word {
	case "create", "c":
		f.cmd = "create"
		var d Durations
		d, err = f.durations()
		req = Create{d}
	case "queue", "q":
		f.cmd = "queue"
		var d Durations
		d, err = f.durations()
		req = Queue{d}
	case "delete", "d":
		f.cmd = "delete"
		req, err = f.delete()
	case "list", "ls", "l":
		f.cmd = "list"
		var p bool
		p, err = f.flag("p", "percentage")
		req = List{ShowPercentage: p}
	case "history", "h":
		var c bool
		c, err = f.flag("clear")
		req = History{ShouldClear: c}
	case "test":
		req = Test{}
	case "exit", "quit":
		f.cmd = "exit"
		req = Exit{}
	case "clear":
		req = Clear{}
	case "help":
		req = Help{}
	default:
		return nil, usagef("", "unknown command %q, try help", args[0])
	}
	if err != nil {
		return nil, err
	}
	if len(pos) > 0 {
		return nil, usagef(f.cmd, "unexpected argument %q", pos[0])
	}
	if err := f.leftovers(); err != nil {
		return nil, err
	}
	return req, nil
}

// flagArgs consumes parsed flags by name. Anything not consumed is an
// unknown flag.
type flagArgs struct {
	cmd   string
	vals  map[string]string
	bools map[string]bool
}

func (f *flagArgs) has(names ...string) bool {
	for _, n := range names {
		if _, ok := f.vals[n]; ok {
			return true
		}
		if f.bools[n] {
			return true
		}
	}
	return false
}

func (f *flagArgs) flag(names ...string) (bool, error) {
	set := false
	for _, n := range names {
		if _, ok := f.vals[n]; ok {
			return false, usagef(f.cmd, "flag %s takes no value", dashed(n))
		}
		if f.bools[n] {
			set = true
			delete(f.bools, n)
		}
	}
	return set, nil
}

func (f *flagArgs) minutes(names ...string) (*uint16, error) {
	var out *uint16
	for _, n := range names {
		if f.bools[n] {
			return nil, usagef(f.cmd, "flag %s requires a value", dashed(n))
		}
		v, ok := f.vals[n]
		if !ok {
			continue
		}
		delete(f.vals, n)
		u, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, usagef(f.cmd, "invalid value %q for %s: want a whole number from 0 to 65535", v, dashed(n))
		}
		m := uint16(u)
		out = &m
	}
	return out, nil
}

func (f *flagArgs) durations() (Durations, error) {
	def := f.has("d", "default")
	if def && f.has("w", "work", "b", "break") {
		return Durations{}, usagef(f.cmd, "-d/--default can not be combined with -w or -b")
	}
	w, err := f.minutes("w", "work")
	if err != nil {
		return Durations{}, err
	}
	b, err := f.minutes("b", "break")
	if err != nil {
		return Durations{}, err
	}
	if _, err := f.flag("d", "default"); err != nil {
		return Durations{}, err
	}
	return Durations{Work: w, Break: b, Default: def}, nil
}

func (f *flagArgs) delete() (Request, error) {
	all, err := f.flag("a", "all")
	if err != nil {
		return nil, err
	}
	hasID := f.has("i", "id")
	switch {
	case all && hasID:
		return nil, usagef(f.cmd, "-i and -a are mutually exclusive")
	case all:
		return Delete{All: true}, nil
	case !hasID:
		return nil, usagef(f.cmd, "one of -i ID or -a is required")
	}
	for _, n := range []string{"i", "id"} {
		if f.bools[n] {
			return nil, usagef(f.cmd, "flag %s requires a value", dashed(n))
		}
		v, ok := f.vals[n]
		if !ok {
			continue
		}
		delete(f.vals, n)
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, usagef(f.cmd, "invalid id %q", v)
		}
		return Delete{ID: uint16(id)}, nil
	}
	return nil, usagef(f.cmd, "one of -i ID or -a is required")
}

func (f *flagArgs) leftovers() error {
	for n := range f.vals {
		return usagef(f.cmd, "unknown flag %s", dashed(n))
	}
	for n := range f.bools {
		return usagef(f.cmd, "unknown flag %s", dashed(n))
	}
	return nil
}

func dashed(n string) string {
	if len(n) == 1 {
		return "-" + n
	}
	return "--" + n
}

// tokenize splits a line into tokens, honoring single and double quotes
// and backslash escapes.
func tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// parseFlags splits args into positionals, valued flags and bool flags.
//
//	--k=v, --k v, --flag
//	-k=v, -k v, -abc (bools a, b, c)
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--") && len(a) > 2 {
			key := strings.TrimPrefix(a, "--")
			if eq := strings.IndexByte(key, '='); eq >= 0 {
				flags[key[:eq]] = key[eq+1:]
				continue
			}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags[key] = args[i+1]
				i++
				continue
			}
			bools[key] = true
			continue
		}
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			key := strings.TrimPrefix(a, "-")
			if eq := strings.IndexByte(key, '='); eq >= 0 {
				flags[key[:eq]] = key[eq+1:]
				continue
			}
			if len(key) == 1 {
				if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
					flags[key] = args[i+1]
					i++
					continue
				}
				bools[key] = true
				continue
			}
			for j := 0; j < len(key); j++ {
				bools[string(key[j])] = true
			}
			continue
		}
		pos = append(pos, a)
	}
	return pos, flags, bools
}
