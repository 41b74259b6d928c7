package ssd

import "fmt"

// ParamSpec describes one named parameter of the SSD300 graph: its
// checkpoint key, element count, and whether it belongs to a batch-norm
// layer.
type ParamSpec struct {
	Name      string
	Count     int
	BatchNorm bool
}

// SSD300Manifest enumerates every learnable parameter of the network in
// graph order: a ResNet-34 backbone truncated after its third stage, five
// additional feature blocks, and six location plus six confidence heads.
// The manifest is the static layer list that drives precision casting and
// checkpoint validation.
func SSD300Manifest() []ParamSpec {
	var specs []ParamSpec

	conv := func(name string, out, in, k int) {
		specs = append(specs, ParamSpec{Name: name + ".weight", Count: out * in * k * k})
	}
	biasedConv := func(name string, out, in, k int) {
		conv(name, out, in, k)
		specs = append(specs, ParamSpec{Name: name + ".bias", Count: out})
	}
	norm := func(name string, ch int) {
		for _, field := range []string{"weight", "bias", "running_mean", "running_var"} {
			specs = append(specs, ParamSpec{Name: name + "." + field, Count: ch, BatchNorm: true})
		}
	}

	backbone := "feature_extractor.feature_extractor"
	conv(backbone+".0", 64, 3, 7)
	norm(backbone+".1", 64)

	stages := []struct {
		index  int
		blocks int
		in     int
		out    int
	}{
		{4, 3, 64, 64},
		{5, 4, 64, 128},
		{6, 6, 128, 256},
	}
	for _, s := range stages {
		in := s.in
		for b := 0; b < s.blocks; b++ {
			base := fmt.Sprintf("%s.%d.%d", backbone, s.index, b)
			conv(base+".conv1", s.out, in, 3)
			norm(base+".bn1", s.out)
			conv(base+".conv2", s.out, s.out, 3)
			norm(base+".bn2", s.out)
			if b == 0 && in != s.out {
				conv(base+".downsample.0", s.out, in, 1)
				norm(base+".downsample.1", s.out)
			}
			in = s.out
		}
	}

	outChannels := []int{256, 512, 512, 256, 256, 256}
	midChannels := []int{256, 256, 128, 128, 128}
	for k := range midChannels {
		base := fmt.Sprintf("additional_blocks.%d", k)
		conv(base+".0", midChannels[k], outChannels[k], 1)
		norm(base+".1", midChannels[k])
		conv(base+".3", outChannels[k+1], midChannels[k], 3)
		norm(base+".4", outChannels[k+1])
	}

	numDefaults := []int{4, 6, 6, 6, 4, 4}
	for i, oc := range outChannels {
		biasedConv(fmt.Sprintf("loc.%d", i), numDefaults[i]*4, oc, 3)
		biasedConv(fmt.Sprintf("conf.%d", i), numDefaults[i]*NumClassesCOCO, oc, 3)
	}

	return specs
}
