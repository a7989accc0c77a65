// Package ffmpeg builds ffmpeg command lines and parses ffmpeg progress output.
package ffmpeg

import (
	"fmt"
	"strings"
)

// X265ParamsBuilder builds x265 parameters with method chaining.
type X265ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewX265ParamsBuilder creates a new x265 parameters builder.
func NewX265ParamsBuilder() *X265ParamsBuilder {
	return &X265ParamsBuilder{}
}

// WithHDR10Signalling sets BT.2020 primaries, PQ transfer and the
// non-constant luminance matrix, and repeats headers on every keyframe.
func (b *X265ParamsBuilder) WithHDR10Signalling() *X265ParamsBuilder {
	b.params = append(b.params,
		paramKV{"hdr-opt", "1"},
		paramKV{"repeat-headers", "1"},
		paramKV{"colorprim", "bt2020"},
		paramKV{"transfer", "smpte2084"},
		paramKV{"colormatrix", "bt2020nc"},
	)
	return b
}

// WithMasterDisplay sets the SMPTE ST 2086 mastering display string.
func (b *X265ParamsBuilder) WithMasterDisplay(md string) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{"master-display", md})
	return b
}

// WithMaxCLL sets the content light levels (MaxCLL, MaxFALL) in nits.
func (b *X265ParamsBuilder) WithMaxCLL(maxCLL, maxFALL uint32) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{"max-cll", fmt.Sprintf("%d,%d", maxCLL, maxFALL)})
	return b
}

// AddParam adds a custom parameter.
func (b *X265ParamsBuilder) AddParam(key, value string) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build builds the parameters into a colon-separated string.
func (b *X265ParamsBuilder) Build() string {
	var parts []string
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}

// P3D65MasterDisplay is a 1000-nit P3-D65 mastering display, the common
// grade for streaming-sourced Dolby Vision profile 8 titles.
const P3D65MasterDisplay = "G(13250,34500)B(7500,3000)R(34000,16000)WP(15635,16450)L(10000000,50)"

// HDR10Params is the fixed x265 parameter string for the re-encode fallback.
func HDR10Params() string {
	return NewX265ParamsBuilder().
		WithHDR10Signalling().
		WithMasterDisplay(P3D65MasterDisplay).
		WithMaxCLL(1000, 400).
		AddParam("log-level", "error").
		Build()
}
