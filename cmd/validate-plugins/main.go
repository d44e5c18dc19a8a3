package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/modules/generatormodule"
	"github.com/mantonx/mediatags/internal/utils"
)

func main() {
	pluginPath := flag.String("plugin", "", "vision plugin binary to launch")
	modelPath := flag.String("model", "", "classifier model description to validate (empty checks the embedded model)")
	samplePath := flag.String("sample", "", "media file to tag with the plugin")
	timeout := flag.Duration("timeout", 10*time.Second, "timeout for the sample tagging call")
	flag.Parse()

	fmt.Println("=== Plugin and Model Validation ===")
	failed := false

	// Test 1: model description
	fmt.Println("✓ Validating classifier model description...")
	model, err := generatormodule.LoadModel(*modelPath)
	if err != nil {
		fmt.Printf("✗ Model validation failed: %v\n", err)
		failed = true
	} else {
		fmt.Printf("✓ Model %q loaded from %s: %d features, %d labels\n",
			model.Name, model.Path, len(model.Features), len(model.Labels))
	}

	// Test 2: vision plugin handshake and a sample call
	if *pluginPath != "" {
		if !validatePlugin(*pluginPath, *samplePath, *timeout) {
			failed = true
		}
	} else {
		fmt.Println("- No vision plugin given, skipping plugin checks")
	}

	fmt.Println("\n=== Validation Complete ===")
	if failed {
		os.Exit(1)
	}
}

func validatePlugin(path, sample string, timeout time.Duration) bool {
	fmt.Printf("✓ Launching vision plugin %s...\n", path)
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "validate",
		Level: hclog.Warn,
	})

	client, err := generatormodule.LaunchVisionPlugin(path, log)
	if err != nil {
		fmt.Printf("✗ Plugin launch failed: %v\n", err)
		return false
	}
	defer client.Close()
	fmt.Println("✓ Plugin handshake successful")

	if sample == "" {
		return true
	}

	mediaType := utils.MediaKind(sample)
	if mediaType == "" {
		fmt.Printf("✗ Sample %s is not a recognised media file\n", sample)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tags, err := client.Tagger.GenerateTags(ctx, sample, mediaType)
	if err != nil {
		fmt.Printf("✗ GenerateTags failed: %v\n", err)
		return false
	}
	fmt.Printf("✓ GenerateTags returned %d tags: %v\n", len(tags), tags)
	return true
}
