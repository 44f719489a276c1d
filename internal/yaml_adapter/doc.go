// Package yaml_adapter provides the YAML implementation of config.Loader.
// A YAML sweep file carries the same trainer, environment, protocol and
// sweep sections as its HCL counterpart, with protocols and sweeps written
// as lists.
package yaml_adapter
