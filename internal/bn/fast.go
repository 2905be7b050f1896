package bn

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var (
	arrowRe = regexp.MustCompile(`->|<-`)
	tokenRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\[(\d+)\]|\{([^}]*)\})?$`)
)

// Fast builds a network from a compact description such as
//
//	"A->B<-C;C->D[3];E{low|high}->B"
//
// Chains are separated by ';'. A name may carry a domain size [n] or
// explicit labels {a|b|c}; the default is binary. The first declaration of
// a variable fixes its domain. When rng is nil CPTs are uniform, otherwise
// they are drawn from rng.
func Fast(structure string, rng *rand.Rand) (*BayesNet, error) {
	b := New(structure)
	for _, chain := range strings.Split(structure, ";") {
		chain = strings.TrimSpace(chain)
		if chain == "" {
			continue
		}
		tokens := arrowRe.Split(chain, -1)
		arrows := arrowRe.FindAllString(chain, -1)

		names := make([]string, len(tokens))
		for i, tok := range tokens {
			name, err := b.declare(strings.TrimSpace(tok))
			if err != nil {
				return nil, fmt.Errorf("parsing %q: %w", chain, err)
			}
			names[i] = name
		}
		for i, arrow := range arrows {
			from, to := names[i], names[i+1]
			if arrow == "<-" {
				from, to = to, from
			}
			if err := b.AddArc(from, to); err != nil {
				return nil, fmt.Errorf("parsing %q: %w", chain, err)
			}
		}
	}
	if rng != nil {
		b.GenerateCPTs(rng)
	}
	return b, nil
}

func (b *BayesNet) declare(tok string) (string, error) {
	m := tokenRe.FindStringSubmatch(tok)
	if m == nil {
		return "", fmt.Errorf("invalid variable token %q", tok)
	}
	name := m[1]
	if _, ok := b.ids[name]; ok {
		return name, nil
	}
	v := NewVariable(name, 2)
	switch {
	case m[2] != "":
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return "", fmt.Errorf("invalid domain size in %q", tok)
		}
		v = NewVariable(name, n)
	case m[3] != "":
		v = NewLabelizedVariable(name, strings.Split(m[3], "|")...)
	}
	if _, err := b.Add(v); err != nil {
		return "", err
	}
	return name, nil
}
