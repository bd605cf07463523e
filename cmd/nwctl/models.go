package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"neuralwarfare/internal/config"
	"neuralwarfare/internal/evo"
	"neuralwarfare/internal/nn"
)

func runInspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	modelPath := fs.String("model", "", "model file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("model is required")
	}

	net, err := nn.LoadFile(nn.FullCatalog(), *modelPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(nn.ModelFilename(*modelPath))
	if err != nil {
		return err
	}
	stats := net.Stats()
	fmt.Fprintf(stdout, "model=%s size=%s layers=%d nodes=%s synapses=%s\n",
		nn.ModelFilename(*modelPath),
		humanize.Bytes(uint64(info.Size())),
		len(stats.LayerSizes),
		humanize.Comma(int64(stats.Nodes)),
		humanize.Comma(int64(stats.Synapses)),
	)
	for layer, size := range stats.LayerSizes {
		fmt.Fprintf(stdout, "layer=%d nodes=%d functions=%s\n", layer, size, layerFunctions(net, layer))
	}
	return nil
}

func layerFunctions(net *nn.Network, layer int) string {
	counts := map[nn.Activation]int{}
	var order []nn.Activation
	for _, id := range net.Layer(layer) {
		act := net.ActivationOf(id)
		if counts[act] == 0 {
			order = append(order, act)
		}
		counts[act]++
	}
	parts := make([]string, len(order))
	for i, act := range order {
		parts[i] = fmt.Sprintf("%s:%d", act, counts[act])
	}
	return strings.Join(parts, ",")
}

func runEval(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	modelPath := fs.String("model", "", "model file")
	rawInputs := fs.String("inputs", "", "comma-separated input vector")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("model is required")
	}
	inputs, err := parseFloats(*rawInputs)
	if err != nil {
		return err
	}

	net, err := nn.LoadFile(nn.FullCatalog(), *modelPath)
	if err != nil {
		return err
	}
	if len(inputs) != len(net.Inputs()) {
		fmt.Fprintf(os.Stderr, "warning: model has %d inputs, got %d values\n", len(net.Inputs()), len(inputs))
	}
	fmt.Fprintf(stdout, "outputs=%s\n", formatFloats(net.Evaluate(inputs)))
	return nil
}

func runModels(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "INI config file; defaults apply when missing")
	dir := fs.String("dir", "", "model folder (overrides [FilePaths] model_folder)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	folder := *dir
	if folder == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		folder = cfg.FilePaths.ModelFolder
	}

	names, err := nn.ListModels(folder)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(stdout, "no models found")
		return nil
	}
	for _, name := range names {
		path := filepath.Join(folder, name+nn.ModelExtension)
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "model=%s size=%s modified=%s\n", name, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	return nil
}

func runDefaults(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("defaults", flag.ContinueOnError)
	out := fs.String("out", "hyperparameters.xml", "output file (.xml or .ini)")
	appOut := fs.String("config-out", "", "also write the default app config to this INI file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := evo.SaveHyperparameters(evo.DefaultHyperparameters(), *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote hyperparameters=%s\n", *out)
	if *appOut != "" {
		if err := config.Default().Save(*appOut); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote config=%s\n", *appOut)
	}
	return nil
}
