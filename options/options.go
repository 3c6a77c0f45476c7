// Package options builds command line parsers from declarative option
// tables. Each option names its flag, value type, help text, and an
// optional default; Parse returns the resolved values behind typed
// getters.
package options

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/pflag"
)

var (
	ErrUnknownType = errors.New("options: unknown option type")
	ErrBadDefault  = errors.New("options: default does not match option type")
	ErrParse       = errors.New("options: parse failed")
)

// Option declares a single command line flag. Type is one of "str",
// "int", "bool", or "float". Default may be nil for the type's zero
// value.
type Option struct {
	Name    string
	Type    string
	Help    string
	Default any
}

// Parser accumulates declared options until Parse is called.
type Parser struct {
	flags *pflag.FlagSet
	order []string
}

// Values holds the result of parsing a command line.
type Values struct {
	flags *pflag.FlagSet
	order []string
}

// New builds a parser from the given options. Parse errors are returned,
// not printed; callers decide how to surface usage.
func New(opts ...Option) (*Parser, error) {
	p := &Parser{flags: pflag.NewFlagSet("options", pflag.ContinueOnError)}
	p.flags.SetOutput(io.Discard)
	if err := p.Add(opts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Usage returns the formatted help text for every declared option.
func (p *Parser) Usage() string {
	return p.flags.FlagUsages()
}

// Add declares further options on an existing parser.
func (p *Parser) Add(opts ...Option) error {
	for _, opt := range opts {
		if err := p.register(opt); err != nil {
			return err
		}
		p.order = append(p.order, opt.Name)
	}
	return nil
}

func (p *Parser) register(opt Option) error {
	switch opt.Type {
	case "str":
		def, err := defaultAs[string](opt)
		if err != nil {
			return err
		}
		p.flags.String(opt.Name, def, opt.Help)
	case "int":
		def, err := defaultAs[int](opt)
		if err != nil {
			return err
		}
		p.flags.Int(opt.Name, def, opt.Help)
	case "bool":
		def, err := defaultAs[bool](opt)
		if err != nil {
			return err
		}
		p.flags.Bool(opt.Name, def, opt.Help)
	case "float":
		def, err := defaultAs[float64](opt)
		if err != nil {
			return err
		}
		p.flags.Float64(opt.Name, def, opt.Help)
	default:
		return fmt.Errorf("%w: %q for --%s", ErrUnknownType, opt.Type, opt.Name)
	}
	return nil
}

func defaultAs[T any](opt Option) (T, error) {
	var zero T
	if opt.Default == nil {
		return zero, nil
	}
	v, ok := opt.Default.(T)
	if !ok {
		return zero, fmt.Errorf("%w: --%s wants %T, got %T", ErrBadDefault, opt.Name, zero, opt.Default)
	}
	return v, nil
}

// Parse resolves the declared options against args. Args are the raw
// command line without the program name.
func (p *Parser) Parse(args []string) (*Values, error) {
	if err := p.flags.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &Values{flags: p.flags, order: p.order}, nil
}

// String returns the named option's value. Undeclared names yield the
// zero value.
func (v *Values) String(name string) string {
	s, _ := v.flags.GetString(name)
	return s
}

// Int returns the named option's value.
func (v *Values) Int(name string) int {
	n, _ := v.flags.GetInt(name)
	return n
}

// Bool returns the named option's value.
func (v *Values) Bool(name string) bool {
	b, _ := v.flags.GetBool(name)
	return b
}

// Float returns the named option's value.
func (v *Values) Float(name string) float64 {
	f, _ := v.flags.GetFloat64(name)
	return f
}

// Changed reports whether the option was given on the command line, as
// opposed to resting at its default.
func (v *Values) Changed(name string) bool {
	return v.flags.Changed(name)
}

// Keys lists every declared option name in sorted order.
func (v *Values) Keys() []string {
	keys := append([]string(nil), v.order...)
	sort.Strings(keys)
	return keys
}

// Args returns the positional arguments left after flag parsing.
func (v *Values) Args() []string {
	return v.flags.Args()
}
