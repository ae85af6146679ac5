// Command train-model trains a demonstration gesture model on synthetic
// landmark data and writes the model and labels files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/sign2text/internal/classifier"
	"github.com/ayusman/sign2text/internal/config"
	applog "github.com/ayusman/sign2text/internal/log"
)

func main() {
	cfg := config.Load()
	train := classifier.DefaultTrainConfig()

	modelPath := flag.String("model", cfg.ModelPath, "output model file")
	labelsPath := flag.String("labels", cfg.LabelsPath, "output labels file")
	flag.IntVar(&train.SamplesPerLabel, "samples", train.SamplesPerLabel, "samples per label")
	flag.Float64Var(&train.Noise, "noise", train.Noise, "standard deviation of the sample noise")
	flag.IntVar(&train.Epochs, "epochs", train.Epochs, "gradient descent epochs")
	flag.Float64Var(&train.LearningRate, "lr", train.LearningRate, "learning rate")
	seed := flag.Uint64("seed", train.Seed, "random seed")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level")
	flag.Parse()
	train.Seed = *seed

	logger := applog.Init(*logLevel)

	fmt.Println("Creating synthetic gesture data...")
	fmt.Printf("Dataset shape: (%d, %d)\n", len(train.Labels)*train.SamplesPerLabel, train.Features)
	fmt.Printf("Number of classes: %d\n", len(train.Labels))
	fmt.Println("Training model...")

	model, report, err := classifier.Train(train)
	if err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Test accuracy: %.4f (%d train, %d test samples, loss %.4f)\n",
		report.TestAccuracy, report.TrainSamples, report.TestSamples, report.TrainLoss)

	for _, p := range []string{*modelPath, *labelsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			logger.Error("failed to create output directory", "path", p, "error", err)
			os.Exit(1)
		}
	}
	if err := model.Save(*modelPath); err != nil {
		logger.Error("failed to save model", "error", err)
		os.Exit(1)
	}
	if err := classifier.SaveLabels(*labelsPath, train.Labels); err != nil {
		logger.Error("failed to save labels", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Model saved as %s\n", *modelPath)
	fmt.Printf("Labels saved as %s\n", *labelsPath)
}
