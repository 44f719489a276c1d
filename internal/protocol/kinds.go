// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
)

// Kind names a multi-phase training protocol.
type Kind string

const (
	// KindVAE warms up a VAE, then trains through unstable and stable phases.
	KindVAE Kind = "vae"
	// KindDecouple trains, then fine-tunes with a domain-decoupling loss.
	KindDecouple Kind = "decouple"
)

// NameField is the derived field carrying the run name.
const NameField = "name"

// Schema is the ordered field table of one protocol kind. Field order is the
// order flags are passed to the Trainer.
type Schema struct {
	Kind   Kind
	Fields []Field
	index  map[string]int
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Required returns the names of all required fields, in table order.
func (s *Schema) Required() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func newSchema(kind Kind, fields ...Field) *Schema {
	s := &Schema{Kind: kind, Fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("protocol: field %q declared twice for kind %s", f.Name, kind))
		}
		s.index[f.Name] = i
	}
	return s
}

func required(name, flag string, d Domain) Field {
	return Field{Name: name, Flag: flag, Domain: d, Required: true, Default: cty.NilVal}
}

func withDefault(name, flag string, d Domain, def cty.Value) Field {
	return Field{Name: name, Flag: flag, Domain: d, Required: true, Default: def}
}

// Central defaults. A template or grid value always wins over these.
var (
	defaultBatchSize      = cty.NumberIntVal(32)
	defaultTrainBatchSize = cty.NumberIntVal(32)
	defaultPhase          = cty.StringVal("train")
)

func runName() Field {
	return Field{Name: NameField, Flag: "--name", Domain: Text, Derived: true, Default: cty.NilVal}
}

var schemas = map[Kind]*Schema{
	KindVAE: newSchema(KindVAE,
		withDefault("batch_size", "--batch-size", PositiveInt, defaultBatchSize),
		required("dataset", "-d", Text),
		required("sources", "-s", TextList),
		required("target", "-t", Text),
		required("arch", "-a", Text),
		runName(),
		required("z_dim", "--z_dim", PositiveInt),
		required("s_dim", "--s_dim", PositiveInt),
		required("C_max", "--C_max", NonNegativeReal),
		required("beta", "--beta", NonNegativeReal),
		required("lambda_vae", "--lambda_vae", NonNegativeReal),
		required("lambda_ent", "--lambda_ent", NonNegativeReal),
		required("iterations", "-i", PositiveInt),
		required("seed", "--seed", NonNegativeInt),
		required("vae_epochs", "--vae_epochs", PositiveInt),
		withDefault("train_batch_size", "--train_batch_size", PositiveInt, defaultTrainBatchSize),
		required("unstable_epochs", "--unstable_epochs", PositiveInt),
		required("stable_epochs", "--stable_epochs", PositiveInt),
		withDefault("phase", "--phase", Text, defaultPhase),
	),
	KindDecouple: newSchema(KindDecouple,
		withDefault("batch_size", "--batch-size", PositiveInt, defaultBatchSize),
		required("dataset", "-d", Text),
		required("sources", "-s", TextList),
		required("target", "-t", Text),
		required("arch", "-a", Text),
		runName(),
		required("z_dim", "--z_dim", PositiveInt),
		required("iterations", "-i", PositiveInt),
		required("seed", "--seed", NonNegativeInt),
		required("train_epochs", "--train_epochs", PositiveInt),
		required("finetune_epochs", "--finetune_epochs", PositiveInt),
		required("decouple_alpha", "--decouple_alpha", NonNegativeReal),
		required("decouple_beta", "--decouple_beta", NonNegativeReal),
		withDefault("phase", "--phase", Text, defaultPhase),
	),
}

// aliases map the short names used on the command line of the original
// scripts to field names.
var aliases = map[string]string{
	"i":          "iterations",
	"d":          "dataset",
	"s":          "sources",
	"t":          "target",
	"a":          "arch",
	"c_max":      "C_max",
	"batch-size": "batch_size",
}

// CanonicalField maps an alias such as "i" to its field name. Unknown names
// are returned unchanged.
func CanonicalField(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	if canonical, ok := aliases[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// SchemaFor returns the field table for kind.
func SchemaFor(kind Kind) (*Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, sweeperr.Configf("kind", "unknown protocol kind %q: must be one of %s", kind, strings.Join(kindNames(), ", "))
	}
	return s, nil
}

// Kinds lists the registered protocol kinds, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func kindNames() []string {
	var names []string
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return names
}
