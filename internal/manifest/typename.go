package manifest

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/hotload/internal/meta"
)

// typeRef is a parsed type reference such as
// "Game::Game.Pool`1[System.Int32][,]".
type typeRef struct {
	Assembly string // optional "Asm::" qualifier
	Name     string // full name without arguments or array suffixes
	Args     []*typeRef
	Ranks    []int // array suffixes, innermost first
}

// aliases are the short names accepted for builtin types.
var aliases = map[string]*meta.Type{
	"object": meta.Object,
	"bool":   meta.Boolean,
	"int":    meta.Int32,
	"long":   meta.Int64,
	"float":  meta.Single,
	"double": meta.Double,
	"string": meta.String,
}

func parseTypeRef(s string) (*typeRef, error) {
	p := &refParser{src: s}
	r, err := p.ref()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("type %q: unexpected %q at offset %d", s, p.src[p.pos:], p.pos)
	}
	return r, nil
}

type refParser struct {
	src string
	pos int
}

func (p *refParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *refParser) ref() (*typeRef, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("[],", rune(p.src[p.pos])) {
		p.pos++
	}
	name := strings.TrimSpace(p.src[start:p.pos])
	if name == "" {
		return nil, fmt.Errorf("type %q: missing name at offset %d", p.src, start)
	}

	r := &typeRef{Name: name}
	if asm, rest, ok := strings.Cut(name, "::"); ok {
		r.Assembly, r.Name = asm, rest
	}

	for p.pos < len(p.src) && p.src[p.pos] == '[' {
		if rank, ok := p.arraySuffix(); ok {
			r.Ranks = append(r.Ranks, rank)
			continue
		}
		if len(r.Args) > 0 || len(r.Ranks) > 0 {
			return nil, fmt.Errorf("type %q: misplaced type arguments at offset %d", p.src, p.pos)
		}
		p.pos++
		for {
			arg, err := p.ref()
			if err != nil {
				return nil, err
			}
			r.Args = append(r.Args, arg)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return nil, fmt.Errorf("type %q: unterminated type arguments", p.src)
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == ']' {
				p.pos++
				break
			}
			return nil, fmt.Errorf("type %q: unexpected %q at offset %d", p.src, p.src[p.pos], p.pos)
		}
	}
	return r, nil
}

// arraySuffix consumes "[]", "[,]" and so on.
func (p *refParser) arraySuffix() (int, bool) {
	i := p.pos + 1
	rank := 1
	for i < len(p.src) && p.src[i] == ',' {
		rank++
		i++
	}
	if i < len(p.src) && p.src[i] == ']' {
		p.pos = i + 1
		return rank, true
	}
	return 0, false
}

// resolver turns type references into descriptors of one image. Unqualified
// names are looked up in the home assembly, then in every assembly of the
// image, then among the builtins.
type resolver struct {
	image meta.Facade
	home  *meta.Assembly
}

func (r *resolver) resolve(s string, params []*meta.Type) (*meta.Type, error) {
	ref, err := parseTypeRef(s)
	if err != nil {
		return nil, err
	}
	return r.build(ref, params)
}

func (r *resolver) build(ref *typeRef, params []*meta.Type) (*meta.Type, error) {
	t, err := r.lookup(ref, params)
	if err != nil {
		return nil, err
	}
	if len(ref.Args) > 0 {
		args := make([]*meta.Type, len(ref.Args))
		for i, a := range ref.Args {
			if args[i], err = r.build(a, params); err != nil {
				return nil, err
			}
		}
		if t, err = meta.Instantiate(t, args...); err != nil {
			return nil, err
		}
	}
	for _, rank := range ref.Ranks {
		t = meta.ArrayOf(t, rank)
	}
	return t, nil
}

func (r *resolver) lookup(ref *typeRef, params []*meta.Type) (*meta.Type, error) {
	name := ref.Name
	if ref.Assembly == "" && len(ref.Args) == 0 {
		// Method parameters shadow type parameters, so search from the end.
		for i := len(params) - 1; i >= 0; i-- {
			if params[i].Name == name {
				return params[i], nil
			}
		}
		if t, ok := aliases[name]; ok {
			return t, nil
		}
	}
	if n := len(ref.Args); n > 0 && !strings.Contains(lastSegment(name), "`") {
		name = fmt.Sprintf("%s`%d", name, n)
	}

	if ref.Assembly != "" {
		asm, ok := r.image.Assembly(ref.Assembly)
		if !ok {
			return nil, fmt.Errorf("type %s::%s: unknown assembly %q", ref.Assembly, name, ref.Assembly)
		}
		if t := asm.Type(name); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("type %s::%s not found", ref.Assembly, name)
	}

	if r.home != nil {
		if t := r.home.Type(name); t != nil {
			return t, nil
		}
	}
	for _, asm := range r.image.Assemblies() {
		if t := asm.Type(name); t != nil {
			return t, nil
		}
	}
	if t := meta.Builtin.Type(name); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("type %s not found", name)
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, ".+"); i >= 0 {
		return name[i+1:]
	}
	return name
}
