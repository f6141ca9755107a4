package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hta/pkg"
	"hta/pkg/io"
)

func TrainCommand() *cobra.Command {

	var gradientMode string
	params := pkg.RunParameters{Training: pkg.DefaultTrainingParameters()}

	var cmd = &cobra.Command{
		Use:   "train [-o outputFile] [--history-file historyFile]",
		Short: "Trains a new two-head model on synthetic patient contacts and optionally saves the model and its training history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseGradientMode(gradientMode)
			if err != nil {
				return err
			}
			params.Training.GradientMode = mode
			return pkg.TrainSynthetic(params, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&params.Training.NumEpochs, "num-epochs", "n", 3000, "number of epochs to train")
	cmd.Flags().Float64VarP(&params.Training.LearningRate, "learning-rate", "l", 0.001, "learning rate")
	cmd.Flags().IntVarP(&params.Training.ReportInterval, "report-interval", "r", 100, "loss report interval in epochs")
	cmd.Flags().Uint64VarP(&params.Training.RndSeed, "random-seed", "x", 42, "random seed")
	cmd.Flags().StringVarP(&gradientMode, "gradient-mode", "", "training", "mode of the forward pass gradients are computed from: training or inference")
	cmd.Flags().Float64VarP(&params.Training.GradientClipThreshold, "gradient-clip", "", 0, "clip gradients by value (0 disables clipping)")

	cmd.Flags().IntVarP(&params.Model.HiddenDimension, "hidden-dimension", "d", 16, "size of the shared hidden layer")
	cmd.Flags().Float64VarP(&params.Model.DropoutProbability, "dropout", "", 0.1, "dropout probability of the shared hidden layer")

	cmd.Flags().IntVarP(&params.Data.Patients, "patients", "p", 200, "number of synthetic patients")
	cmd.Flags().IntVarP(&params.Data.MaxContacts, "max-contacts", "", 10, "maximum number of contacts per patient")
	cmd.Flags().Int64VarP(&params.Data.Seed, "data-seed", "", 1, "seed of the synthetic patients")
	cmd.Flags().Float64VarP(&params.ValidationFraction, "validation-fraction", "", 0.2, "fraction of patients used for validation")
	cmd.Flags().IntVarP(&params.Task.ATCClasses, "atc-classes", "", 6, "number of ATC codes to predict")
	cmd.Flags().IntVarP(&params.Task.WaitTimeBuckets, "wait-time-buckets", "", 6, "number of wait time buckets")
	cmd.Flags().StringVarP(&params.Task.WaitTimeUnit, "wait-time-unit", "", io.Weeks, "unit of the wait time buckets: weeks or months")
	cmd.Flags().Int64VarP(&params.Task.TaskSeed, "task-seed", "", 7, "seed of the synthetic labelling task")

	cmd.Flags().StringVarP(&params.OutputFile, "output-file", "o", "", "name of the file to save the model to")
	cmd.Flags().StringVarP(&params.HistoryFile, "history-file", "", "", "name of the file to save the training history to (JSON)")

	return cmd
}

func EvaluateCommand() *cobra.Command {
	var modelFile string
	var data io.SyntheticParameters

	var cmd = &cobra.Command{
		Use:   "evaluate -m modelFile",
		Short: "Evaluates a saved model on newly generated patients of the task it was trained on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Test(modelFile, data)
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "name of model to evaluate")
	cmd.Flags().IntVarP(&data.Patients, "patients", "p", 100, "number of synthetic patients")
	cmd.Flags().IntVarP(&data.MaxContacts, "max-contacts", "", 10, "maximum number of contacts per patient")
	cmd.Flags().Int64VarP(&data.Seed, "data-seed", "", 2, "seed of the synthetic patients")

	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func parseGradientMode(mode string) (nn.ProcessingMode, error) {
	switch mode {
	case "training":
		return nn.Training, nil
	case "inference":
		return nn.Inference, nil
	default:
		return nn.Training, fmt.Errorf("invalid gradient mode %q: expected training or inference", mode)
	}
}

var logLevel string
var logFormat string

func main() {

	Main := &cobra.Command{Use: "hta", PersistentPreRun: setupLogging}

	Main.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	Main.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	Main.AddCommand(TrainCommand())
	Main.AddCommand(EvaluateCommand())

	if err := Main.Execute(); err != nil {
		panic(err)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		panic("Invalid logging level specified")
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
	default:
		panic("Invalid log format specified")
	}
}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}
	}
	log.Logger = log.Output(writer)
}
