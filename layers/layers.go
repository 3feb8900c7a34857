// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layers provides Lipschitz-constrained drop-in replacements for the
// standard Born layers.
//
// Each layer exposes a Lipschitz coefficient (k_coef_lip) bounding the
// operator norm of its transform. Kernels are conditioned during the forward
// pass with spectral normalization and Björck orthogonalization, so a
// network built from these layers has a provable bound on its sensitivity to
// input perturbations.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	layer := layers.NewSpectralDense(64, 32, layers.DenseConfig{KCoefLip: 1.0}, backend)
//	out := layer.Forward(input) // 1-Lipschitz transform
package layers

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/layers"
)

// LipschitzLayer is the interface shared by all Lipschitz-constrained
// layers: a regular Born module with a configurable Lipschitz bound and a
// hard in-place projection (Condense).
type LipschitzLayer[B tensor.Backend] = layers.LipschitzLayer[B]

// VanillaExporter is implemented by layers convertible to plain Born modules
// with the conditioned weights baked in.
type VanillaExporter[B tensor.Backend] = layers.VanillaExporter[B]

// DenseConfig configures SpectralDense and FrobeniusDense layers.
type DenseConfig = layers.DenseConfig

// Conv2DConfig configures SpectralConv2D layers.
type Conv2DConfig = layers.Conv2DConfig

// SpectralDense is a fully connected layer with a bounded spectral norm.
type SpectralDense[B tensor.Backend] = layers.SpectralDense[B]

// NewSpectralDense creates a SpectralDense layer.
//
// Example:
//
//	layer := layers.NewSpectralDense(784, 128, layers.DenseConfig{}, backend)
func NewSpectralDense[B tensor.Backend](inFeatures, outFeatures int, cfg DenseConfig, backend B) *SpectralDense[B] {
	return layers.NewSpectralDense(inFeatures, outFeatures, cfg, backend)
}

// FrobeniusDense is a fully connected layer normalized by its Frobenius
// norm; the bound is tight for a single output unit.
type FrobeniusDense[B tensor.Backend] = layers.FrobeniusDense[B]

// NewFrobeniusDense creates a FrobeniusDense layer.
//
// Example:
//
//	head := layers.NewFrobeniusDense(128, 1, layers.DenseConfig{}, backend)
func NewFrobeniusDense[B tensor.Backend](inFeatures, outFeatures int, cfg DenseConfig, backend B) *FrobeniusDense[B] {
	return layers.NewFrobeniusDense(inFeatures, outFeatures, cfg, backend)
}

// SpectralConv2D is a 2D convolutional layer with a bounded Lipschitz
// constant.
type SpectralConv2D[B tensor.Backend] = layers.SpectralConv2D[B]

// NewSpectralConv2D creates a SpectralConv2D layer.
//
// Example:
//
//	conv := layers.NewSpectralConv2D(1, 16, 3, 3, 1, 1, true, layers.Conv2DConfig{}, backend)
func NewSpectralConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	cfg Conv2DConfig,
	backend B,
) *SpectralConv2D[B] {
	return layers.NewSpectralConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, cfg, backend)
}

// ScaledAveragePooling2D is average pooling rescaled to operator norm 1.
type ScaledAveragePooling2D[B tensor.Backend] = layers.ScaledAveragePooling2D[B]

// NewScaledAveragePooling2D creates a scaled average pooling layer.
//
// Example:
//
//	pool := layers.NewScaledAveragePooling2D(2, 2, 1.0, backend)
func NewScaledAveragePooling2D[B tensor.Backend](poolH, poolW int, kCoefLip float32, backend B) *ScaledAveragePooling2D[B] {
	return layers.NewScaledAveragePooling2D(poolH, poolW, kCoefLip, backend)
}

// ScaledL2NormPooling2D pools each window to its Euclidean norm.
type ScaledL2NormPooling2D[B tensor.Backend] = layers.ScaledL2NormPooling2D[B]

// NewScaledL2NormPooling2D creates an L2-norm pooling layer.
//
// Example:
//
//	pool := layers.NewScaledL2NormPooling2D(2, 2, 1.0, backend)
func NewScaledL2NormPooling2D[B tensor.Backend](poolH, poolW int, kCoefLip float32, backend B) *ScaledL2NormPooling2D[B] {
	return layers.NewScaledL2NormPooling2D(poolH, poolW, kCoefLip, backend)
}
