// Package tui holds the interactive prompts of sumx.
package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/qntx/sumx/internal/build"
	"github.com/qntx/sumx/internal/target"
)

var bindingLabels = map[build.Binding]string{
	build.BindingWASI:     "WebAssembly (WASI reactor)",
	build.BindingJS:       "WebAssembly (JavaScript)",
	build.BindingCShared:  "C shared library",
	build.BindingCArchive: "C static archive",
}

// SelectTarget asks for the binding, the platform when the binding is
// native, the output path and packing. Answers are written into opts.
func SelectTarget(opts *build.Options) (*build.Options, error) {
	binding := opts.Binding
	if !binding.Valid() {
		binding = build.BindingWASI
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[build.Binding]().
				Title("Binding").
				Description("How sum is exposed to the host").
				Options(bindingOptions()...).
				Value(&binding),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}
	opts.Binding = binding

	platform := binding.Platform()
	if platform.GOOS == "" {
		platform = defaultPlatform(opts)
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[target.Platform]().
					Title("Target Platform").
					Description("Select the target OS/Architecture").
					Options(platformOptions()...).
					Value(&platform),
			),
		).Run()
		if err != nil {
			return nil, fmt.Errorf("form: %w", err)
		}
	}
	opts.GOOS, opts.GOARCH = platform.GOOS, platform.GOARCH

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Output").
				Description("Artifact path (empty for the dist layout)").
				Placeholder(binding.Artifact(platform.GOOS)).
				Value(&opts.Output),

			huh.NewConfirm().
				Title("Pack").
				Description("Create an archive after the build").
				Value(&opts.Pack),
		),
	).Run()
	if err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}

	return opts, nil
}

func bindingOptions() []huh.Option[build.Binding] {
	opts := make([]huh.Option[build.Binding], len(build.Bindings))
	for i, b := range build.Bindings {
		opts[i] = huh.NewOption(bindingLabels[b], b)
	}
	return opts
}

func platformOptions() []huh.Option[target.Platform] {
	opts := make([]huh.Option[target.Platform], len(target.Native))
	for i, p := range target.Native {
		opts[i] = huh.NewOption(p.String(), p)
	}
	return opts
}

// defaultPlatform preselects what opts already names, else the host.
func defaultPlatform(opts *build.Options) target.Platform {
	if p, ok := target.Find(opts.GOOS, opts.GOARCH); ok {
		return p
	}
	return target.Host()
}
