// Package hcl_adapter provides the HCL implementation of config.Loader. It
// is responsible for file parsing and HCL-to-model translation of trainer,
// environment, protocol and sweep blocks.
package hcl_adapter
