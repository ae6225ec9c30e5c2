package filtergraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Arg is one filter option. Key is empty for positional options.
type Arg struct {
	Key   string
	Value string
}

// Filter is a single filter node such as scale=1280:720.
type Filter struct {
	Name string
	Args []Arg
}

// F builds a filter from alternating key, value pairs. A trailing odd
// element is treated as a positional value.
func F(name string, kv ...string) Filter {
	f := Filter{Name: name}
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			f.Args = append(f.Args, Arg{Value: kv[i]})
			break
		}
		f.Args = append(f.Args, Arg{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Positional builds a filter whose options are all positional.
func Positional(name string, values ...string) Filter {
	f := Filter{Name: name}
	for _, v := range values {
		f.Args = append(f.Args, Arg{Value: v})
	}
	return f
}

// Raw wraps already-serialized filter text, e.g. from a template.
func Raw(text string) Filter {
	return Filter{Name: text}
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		v := quoteValue(a.Value)
		if a.Key == "" {
			parts[i] = v
		} else {
			parts[i] = a.Key + "=" + v
		}
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// quoteValue single-quotes values containing filtergraph syntax characters.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ":,;[]=' \\") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// Chain is a linear run of filters between labeled pads.
type Chain struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	for i, f := range c.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	for _, out := range c.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// Graph is a filter_complex under construction. Labels are allocated by
// the graph so they never collide.
type Graph struct {
	chains   []Chain
	counters map[string]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{counters: make(map[string]int)}
}

// Label returns a fresh label with the given prefix.
func (g *Graph) Label(prefix string) string {
	n := g.counters[prefix]
	g.counters[prefix] = n + 1
	return prefix + strconv.Itoa(n)
}

// InputPad addresses a stream of an input file, e.g. "2:v".
func InputPad(index int, stream string) string {
	return strconv.Itoa(index) + ":" + stream
}

// Add appends a chain.
func (g *Graph) Add(inputs []string, filters []Filter, outputs ...string) {
	g.chains = append(g.chains, Chain{Inputs: inputs, Filters: filters, Outputs: outputs})
}

// Pipe runs filters on one input and returns a fresh output label.
func (g *Graph) Pipe(input, prefix string, filters ...Filter) string {
	out := g.Label(prefix)
	var inputs []string
	if input != "" {
		inputs = []string{input}
	}
	g.Add(inputs, filters, out)
	return out
}

// Empty reports whether no chain has been added.
func (g *Graph) Empty() bool {
	return len(g.chains) == 0
}

// String serializes the graph for -filter_complex.
func (g *Graph) String() string {
	parts := make([]string, len(g.chains))
	for i, c := range g.chains {
		parts[i] = c.String()
	}
	return strings.Join(parts, ";")
}

// Check verifies that every label is produced once, consumed at most once,
// and produced before it is consumed. Input pads ("n:v") are exempt.
// It returns the labels left unconsumed.
func (g *Graph) Check() (unconsumed []string, err error) {
	produced := make(map[string]bool)
	consumed := make(map[string]bool)
	var order []string

	for i, c := range g.chains {
		for _, in := range c.Inputs {
			if strings.Contains(in, ":") {
				continue
			}
			if !produced[in] {
				return nil, fmt.Errorf("chain %d consumes %q before it is produced", i, in)
			}
			if consumed[in] {
				return nil, fmt.Errorf("chain %d consumes %q twice", i, in)
			}
			consumed[in] = true
		}
		for _, out := range c.Outputs {
			if produced[out] {
				return nil, fmt.Errorf("chain %d produces %q twice", i, out)
			}
			produced[out] = true
			order = append(order, out)
		}
	}

	for _, l := range order {
		if !consumed[l] {
			unconsumed = append(unconsumed, l)
		}
	}
	return unconsumed, nil
}
