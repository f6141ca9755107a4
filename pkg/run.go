package pkg

import (
	"fmt"
	gio "io"
	"os"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/rs/zerolog/log"

	"hta/pkg/io"
	"hta/pkg/model"
)

type RunParameters struct {
	Task               io.TaskParameters
	Data               io.SyntheticParameters
	ValidationFraction float64
	Model              model.Config
	Training           TrainingParameters

	// OutputFile and HistoryFile are written after training when not empty
	OutputFile  string
	HistoryFile string
}

// TrainSynthetic generates a synthetic data set, trains a new multi-head model on it,
// evaluates it on the validation split and saves the requested artifacts.
func TrainSynthetic(p RunParameters, output gio.Writer) error {
	metaData, err := io.NewTaskMetadata(p.Task)
	if err != nil {
		return err
	}
	data, err := io.Synthesize(p.Data, metaData)
	if err != nil {
		return fmt.Errorf("error generating data: %w", err)
	}
	validationSize := int(float64(data.Size()) * p.ValidationFraction)
	if validationSize < 1 || validationSize >= data.Size() {
		return fmt.Errorf("validation fraction %.3f leaves no patients for one of the splits (%d patients)",
			p.ValidationFraction, data.Size())
	}
	splits := data.RandomSplit(data.Size()-validationSize, validationSize)
	log.Info().Int("TrainPatients", splits[0].Size()).Int("ValidationPatients", splits[1].Size()).Msg("Generated data")

	//Overwrite values that are only known after building the task
	config := p.Model
	config.NumFeatures = metaData.FeatureCount()
	config.NumATCCodes = metaData.ATCCodes.Size()
	config.NumWaitTimes = metaData.WaitTimes.Size()
	network := model.NewMultiHead(config)
	network.Init(rand.NewLockedRand(p.Training.RndSeed))

	history, err := Train(TrainingContext{
		Model:         network,
		TrainSet:      splits[0],
		ValidationSet: splits[1],
		Params:        p.Training,
		Output:        output,
	})
	if err != nil {
		return fmt.Errorf("error training model: %w", err)
	}

	m := &model.Model{MetaData: metaData, Network: network}
	if _, err := Evaluate(m, splits[1]); err != nil {
		return fmt.Errorf("error evaluating model: %w", err)
	}

	if p.OutputFile != "" {
		if err := writeFile(p.OutputFile, func(w gio.Writer) error { return io.SaveModel(m, w) }); err != nil {
			return err
		}
		log.Info().Str("File", p.OutputFile).Msg("Saved model")
	}
	if p.HistoryFile != "" {
		if err := writeFile(p.HistoryFile, history.WriteJSON); err != nil {
			return err
		}
		log.Info().Str("File", p.HistoryFile).Msg("Saved history")
	}
	return nil
}

// Test evaluates a saved model on freshly generated patients of the task it was trained on.
func Test(modelFileName string, data io.SyntheticParameters) error {
	modelFile, err := os.Open(modelFileName)
	if err != nil {
		return fmt.Errorf("error opening model file %s: %w", modelFileName, err)
	}
	defer modelFile.Close()

	m, err := io.LoadModel(modelFile)
	if err != nil {
		return fmt.Errorf("error loading model from file %s: %w", modelFileName, err)
	}
	dataSet, err := io.Synthesize(data, m.MetaData)
	if err != nil {
		return fmt.Errorf("error generating data: %w", err)
	}
	_, err = Evaluate(m, dataSet)
	return err
}

func writeFile(fileName string, write func(w gio.Writer) error) error {
	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("error creating output file %s: %w", fileName, err)
	}
	defer file.Close()
	if err := write(file); err != nil {
		return fmt.Errorf("error writing %s: %w", fileName, err)
	}
	return nil
}
