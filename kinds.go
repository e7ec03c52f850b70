package isodenoise

import (
	"strings"

	"github.com/pkg/errors"
)

// ModelKind names a generator architecture.
type ModelKind string

// The generator architectures that can be constructed.
const (
	ModelBasic      ModelKind = "basic"
	ModelDenseGated ModelKind = "dense_gated"
)

// ModelKinds lists every ModelKind, in a stable order.
var ModelKinds = []ModelKind{ModelBasic, ModelDenseGated}

// DiscriminatorKind names a discriminator architecture. DiscriminatorNone disables
// adversarial training.
type DiscriminatorKind string

// The discriminator architectures that can be constructed.
const (
	DiscriminatorNone   DiscriminatorKind = "none"
	DiscriminatorSimple DiscriminatorKind = "simple"
)

// DiscriminatorKinds lists every DiscriminatorKind.
var DiscriminatorKinds = []DiscriminatorKind{DiscriminatorNone, DiscriminatorSimple}

// LossKind names a content loss between the generator output and the clean target.
type LossKind string

// The content losses.
const (
	LossMSE       LossKind = "mse"
	LossL1        LossKind = "l1"
	LossHuber     LossKind = "huber"
	LossEdgeAware LossKind = "edge_aware"
)

// LossKinds lists every LossKind.
var LossKinds = []LossKind{LossMSE, LossL1, LossHuber, LossEdgeAware}

// AdversarialKind names the loss used to train a discriminator.
type AdversarialKind string

// The adversarial losses.
const (
	AdversarialWasserstein AdversarialKind = "wasserstein"
	AdversarialHinge       AdversarialKind = "hinge"
)

// AdversarialKinds lists every AdversarialKind.
var AdversarialKinds = []AdversarialKind{AdversarialWasserstein, AdversarialHinge}

// OptimKind names a parameter optimizer.
type OptimKind string

// The optimizers.
const (
	OptimSGD      OptimKind = "sgd"
	OptimMomentum OptimKind = "momentum"
	OptimAdam     OptimKind = "adam"
	OptimRMSProp  OptimKind = "rmsprop"
)

// OptimKinds lists every OptimKind.
var OptimKinds = []OptimKind{OptimSGD, OptimMomentum, OptimAdam, OptimRMSProp}

// PenaltyKind names a weight regularization term added to every gradient.
type PenaltyKind string

// The penalties.
const (
	PenaltyNone       PenaltyKind = "none"
	PenaltyL1         PenaltyKind = "l1"
	PenaltyL2         PenaltyKind = "l2"
	PenaltyElasticNet PenaltyKind = "elastic_net"
)

// PenaltyKinds lists every PenaltyKind.
var PenaltyKinds = []PenaltyKind{PenaltyNone, PenaltyL1, PenaltyL2, PenaltyElasticNet}

// InitKind names the distribution new convolution filters are drawn from.
type InitKind string

// The filter initializers.
const (
	InitKaimingUniform InitKind = "kaiming_uniform"
	InitHe             InitKind = "he"
	InitLeCun          InitKind = "lecun"
	InitXavier         InitKind = "xavier"
)

// InitKinds lists every InitKind.
var InitKinds = []InitKind{InitKaimingUniform, InitHe, InitLeCun, InitXavier}

// DatasetKind names an on-disk dataset layout.
type DatasetKind string

// The dataset layouts.
const (
	// DatasetPatched is the patch-indexed layout: <root>/<original>/{clean,noisy}/<patch>.png
	DatasetPatched DatasetKind = "patched"
	// DatasetManifest is the record-indexed layout described by a CSV manifest.
	DatasetManifest DatasetKind = "manifest"
	// DatasetByClass is the raw layout grouped by scene class.
	DatasetByClass DatasetKind = "by_class"
)

// DatasetKinds lists every DatasetKind.
var DatasetKinds = []DatasetKind{DatasetPatched, DatasetManifest, DatasetByClass}

// aliases maps the class-style names used by earlier versions of the tooling onto kinds.
var aliases = map[string]string{
	"basicgenerator":      string(ModelBasic),
	"gatedcnn":            string(ModelBasic),
	"densegatedcnn":       string(ModelDenseGated),
	"simplediscriminator": string(DiscriminatorSimple),
	"mseloss":             string(LossMSE),
	"l1loss":              string(LossL1),
	"smoothl1loss":        string(LossHuber),
	"edgeawareloss":       string(LossEdgeAware),
	"wassersteinlossgan":  string(AdversarialWasserstein),
	"hingelossgan":        string(AdversarialHinge),
	"rmsprop":             string(OptimRMSProp),
	"glorot":              string(InitXavier),
	"kaiming":             string(InitKaimingUniform),
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, ok := aliases[s]; ok {
		return a
	}
	return strings.Replace(s, "-", "_", -1)
}

// ParseModelKind returns the ModelKind named by s. Names are case-insensitive.
func ParseModelKind(s string) (ModelKind, error) {
	n := normalize(s)
	for _, k := range ModelKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown model %q", s)
}

// ParseDiscriminatorKind returns the DiscriminatorKind named by s. An empty string is
// DiscriminatorNone.
func ParseDiscriminatorKind(s string) (DiscriminatorKind, error) {
	n := normalize(s)
	if n == "" {
		return DiscriminatorNone, nil
	}
	for _, k := range DiscriminatorKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown discriminator %q", s)
}

// ParseLossKind returns the LossKind named by s.
func ParseLossKind(s string) (LossKind, error) {
	n := normalize(s)
	for _, k := range LossKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown loss %q", s)
}

// ParseAdversarialKind returns the AdversarialKind named by s.
func ParseAdversarialKind(s string) (AdversarialKind, error) {
	n := normalize(s)
	for _, k := range AdversarialKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown adversarial loss %q", s)
}

// ParseOptimKind returns the OptimKind named by s.
func ParseOptimKind(s string) (OptimKind, error) {
	n := normalize(s)
	for _, k := range OptimKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown optimizer %q", s)
}

// ParsePenaltyKind returns the PenaltyKind named by s. An empty string is PenaltyNone.
func ParsePenaltyKind(s string) (PenaltyKind, error) {
	n := normalize(s)
	if n == "" {
		return PenaltyNone, nil
	}
	for _, k := range PenaltyKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown penalty %q", s)
}

// ParseInitKind returns the InitKind named by s. An empty string is InitKaimingUniform.
func ParseInitKind(s string) (InitKind, error) {
	n := normalize(s)
	if n == "" {
		return InitKaimingUniform, nil
	}
	for _, k := range InitKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown initializer %q", s)
}

// ParseDatasetKind returns the DatasetKind named by s.
func ParseDatasetKind(s string) (DatasetKind, error) {
	n := normalize(s)
	for _, k := range DatasetKinds {
		if string(k) == n {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown dataset kind %q", s)
}
