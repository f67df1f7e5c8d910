// Package cpuset implements CPU index sets and their string specification
// format: a comma-separated list of single indices or inclusive ranges,
// e.g. "0,2-3,8".
package cpuset

import (
	"fmt"
	"strconv"
	"strings"
)

const wordBits = 64

// Set is a set of non-negative CPU indices.
type Set struct {
	bits []uint64
}

// Parse converts a specification string into a Set. Indices beyond the
// number of configured processors are accepted; excess bits are harmless
// and simply never render on read-back.
func Parse(spec string) (Set, error) {
	var s Set
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return Set{}, fmt.Errorf("cpuset %q: empty element", spec)
		}
		from, to := tok, tok
		if i := strings.IndexByte(tok, '-'); i >= 0 {
			from, to = tok[:i], tok[i+1:]
		}
		lo, err := strconv.Atoi(from)
		if err != nil || lo < 0 {
			return Set{}, fmt.Errorf("cpuset %q: bad cpu index %q", spec, from)
		}
		hi, err := strconv.Atoi(to)
		if err != nil || hi < lo {
			return Set{}, fmt.Errorf("cpuset %q: bad range %q", spec, tok)
		}
		for cpu := lo; cpu <= hi; cpu++ {
			s.Add(cpu)
		}
	}
	return s, nil
}

// Add inserts a CPU index into the set.
func (s *Set) Add(cpu int) {
	if cpu < 0 {
		return
	}
	word := cpu / wordBits
	for len(s.bits) <= word {
		s.bits = append(s.bits, 0)
	}
	s.bits[word] |= 1 << (cpu % wordBits)
}

// Contains reports whether the set holds the given CPU index.
func (s Set) Contains(cpu int) bool {
	word := cpu / wordBits
	if cpu < 0 || word >= len(s.bits) {
		return false
	}
	return s.bits[word]&(1<<(cpu%wordBits)) != 0
}

// IsEmpty reports whether no CPU index is set.
func (s Set) IsEmpty() bool {
	for _, w := range s.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of CPU indices in the set.
func (s Set) Count() int {
	n := 0
	for cpu := 0; cpu < len(s.bits)*wordBits; cpu++ {
		if s.Contains(cpu) {
			n++
		}
	}
	return n
}

// List returns the CPU indices in ascending order.
func (s Set) List() []int {
	var cpus []int
	for cpu := 0; cpu < len(s.bits)*wordBits; cpu++ {
		if s.Contains(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus
}

// String renders the minimal run-length specification: ranges for runs
// longer than one, single indices otherwise, ascending, no trailing
// separator. The inverse of Parse.
func (s Set) String() string {
	var b strings.Builder
	limit := len(s.bits) * wordBits
	cpu := 0
	for cpu < limit {
		for cpu < limit && !s.Contains(cpu) {
			cpu++
		}
		if cpu >= limit {
			break
		}
		from := cpu
		to := cpu
		cpu++
		for cpu < limit && s.Contains(cpu) {
			to = cpu
			cpu++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if from == to {
			fmt.Fprintf(&b, "%d", from)
		} else {
			fmt.Fprintf(&b, "%d-%d", from, to)
		}
	}
	return b.String()
}
