package app

import (
	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/hcl_adapter"
	"github.com/specialistvlad/sweepgrid/internal/yaml_adapter"
)

// coreLoaders is the definitive list of sweep file formats compiled into the
// sweepgrid binary.
func coreLoaders() []config.Loader {
	return []config.Loader{
		hcl_adapter.NewLoader(),
		yaml_adapter.NewLoader(),
	}
}
