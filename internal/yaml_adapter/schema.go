package yaml_adapter

// fileRoot is the top-level document of a YAML sweep file.
type fileRoot struct {
	Trainer     *trainerDoc     `yaml:"trainer"`
	Environment *environmentDoc `yaml:"environment"`
	Protocols   []protocolDoc   `yaml:"protocols"`
	Sweeps      []sweepDoc      `yaml:"sweeps"`
}

type trainerDoc struct {
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Timeout   string            `yaml:"timeout"`
	KillGrace string            `yaml:"kill_grace"`
	LogDir    string            `yaml:"log_dir"`
	WorkDir   string            `yaml:"work_dir"`
	Env       map[string]string `yaml:"env"`
}

type environmentDoc struct {
	Tracking        string `yaml:"tracking"`
	Devices         []int  `yaml:"devices"`
	DatasetRoot     string `yaml:"dataset_root"`
	DeviceCount     *int   `yaml:"device_count"`
	DeviceVar       string `yaml:"device_var"`
	TrackingVar     string `yaml:"tracking_var"`
	ParallelDevices bool   `yaml:"parallel_devices"`
}

type protocolDoc struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name"`
	Values map[string]any `yaml:"values"`
}

type sweepDoc struct {
	Name     string    `yaml:"name"`
	Protocol string    `yaml:"protocol"`
	Mode     string    `yaml:"mode"`
	NameAxes []string  `yaml:"name_axes"`
	Axes     []axisDoc `yaml:"axes"`
}

type axisDoc struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}
