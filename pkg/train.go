package pkg

import (
	"errors"
	"fmt"
	gio "io"
	"math"
	"os"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/losses"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd/adam"
	"github.com/rs/zerolog/log"

	"hta/pkg/io"
	"hta/pkg/model"
)

var (
	ErrMissingHead   = errors.New("missing output head")
	ErrNonFiniteLoss = errors.New("loss is not finite")
	ErrEmptyDataSet  = errors.New("empty data set")
)

const progressFormat = "epochs %03d --- loss %.3f (atc: %.3f  wait_time: %.3f)\n"

type TrainingParameters struct {
	NumEpochs      int
	LearningRate   float64
	ReportInterval int
	RndSeed        uint64

	// GradientMode is the processing mode of the forward pass the gradients are computed from.
	GradientMode nn.ProcessingMode

	// GradientClipThreshold clips gradients by value when > 0
	GradientClipThreshold float64
}

func DefaultTrainingParameters() TrainingParameters {
	return TrainingParameters{
		NumEpochs:      3000,
		LearningRate:   0.001,
		ReportInterval: 100,
		RndSeed:        42,
		GradientMode:   nn.Training,
	}
}

// Model is a differentiable function producing the ATC_CODE and WAIT_TIME outputs.
// ParamsList must always return the trainable parameters in the same order.
type Model interface {
	ParamsList() []*nn.Param
	Forward(g *ag.Graph, mode nn.ProcessingMode, xs []ag.Node) model.Outputs
}

var _ Model = &model.MultiHead{}

// LossFunc computes the loss of a single position given the logits and the target class.
type LossFunc func(g *ag.Graph, logits ag.Node, target int) ag.Node

// TrainingContext bundles everything a training run needs.
type TrainingContext struct {
	Model         Model
	Loss          LossFunc // defaults to cross entropy
	TrainSet      *io.DataSet
	ValidationSet *io.DataSet
	Params        TrainingParameters
	Output        gio.Writer // progress lines; defaults to stdout
}

type Trainer struct {
	params          TrainingParameters
	optimizer       *gd.GradientDescent
	model           Model
	lossFunc        LossFunc
	output          gio.Writer
	trainBatch      io.Batch
	validationBatch io.Batch
	history         *History
}

// Train runs exactly NumEpochs iterations over the training set. Every iteration
// measures train and validation accuracy, computes the gradients of the ATC and
// wait-time losses separately, sums them and applies one optimizer step.
// The first error aborts the run; the history collected so far is returned with it.
func Train(tc TrainingContext) (*History, error) {
	t, err := newTrainer(tc)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("Epochs", t.params.NumEpochs).
		Int("TrainPositions", t.trainBatch.Size()).
		Int("ValidationPositions", t.validationBatch.Size()).
		Str("GradientMode", modeName(t.params.GradientMode)).
		Msg("Starting training")

	for epoch := 0; epoch < t.params.NumEpochs; epoch++ {
		if err := t.trainEpoch(epoch); err != nil {
			return t.history, fmt.Errorf("epoch %03d: %w", epoch+1, err)
		}
	}

	summary := t.history.Summary(t.params.ReportInterval)
	log.Info().
		Float64("LossATC", summary.Losses.ATC).
		Float64("LossWaitTime", summary.Losses.WaitTime).
		Float64("TrainAccuracyATC", summary.TrainAccuracy.ATC).
		Float64("TrainAccuracyWaitTime", summary.TrainAccuracy.WaitTime).
		Float64("ValidationAccuracyATC", summary.ValidationAccuracy.ATC).
		Float64("ValidationAccuracyWaitTime", summary.ValidationAccuracy.WaitTime).
		Msg("Training completed")
	return t.history, nil
}

func newTrainer(tc TrainingContext) (*Trainer, error) {
	if tc.Model == nil {
		return nil, errors.New("no model to train")
	}
	if tc.Params.NumEpochs < 0 {
		return nil, fmt.Errorf("number of epochs must be >= 0, got %d", tc.Params.NumEpochs)
	}
	if tc.Params.ReportInterval <= 0 {
		return nil, fmt.Errorf("report interval must be > 0, got %d", tc.Params.ReportInterval)
	}
	trainBatch, err := flatten(tc.TrainSet)
	if err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	validationBatch, err := flatten(tc.ValidationSet)
	if err != nil {
		return nil, fmt.Errorf("validation set: %w", err)
	}

	t := &Trainer{
		params:          tc.Params,
		model:           tc.Model,
		lossFunc:        tc.Loss,
		output:          tc.Output,
		trainBatch:      trainBatch,
		validationBatch: validationBatch,
		history:         &History{},
	}
	if t.lossFunc == nil {
		t.lossFunc = losses.CrossEntropy
	}
	if t.output == nil {
		t.output = os.Stdout
	}

	updaterConfig := adam.NewDefaultConfig()
	updaterConfig.StepSize = tc.Params.LearningRate
	updater := adam.New(updaterConfig)
	var opts []gd.Option
	if tc.Params.GradientClipThreshold > 0 {
		opts = append(opts, gd.ClipGradByValue(tc.Params.GradientClipThreshold))
	}
	t.optimizer = gd.NewOptimizer(updater, tc.Model, opts...)
	return t, nil
}

func flatten(data *io.DataSet) (io.Batch, error) {
	if data == nil {
		return io.Batch{}, ErrEmptyDataSet
	}
	batch := data.Flatten()
	if batch.Size() == 0 {
		return io.Batch{}, ErrEmptyDataSet
	}
	if len(batch.Labels.ATC) != batch.Size() || len(batch.Labels.WaitTime) != batch.Size() {
		return io.Batch{}, fmt.Errorf("%w: %d inputs, %d ATC labels, %d wait time labels", ErrShapeMismatch,
			batch.Size(), len(batch.Labels.ATC), len(batch.Labels.WaitTime))
	}
	return batch, nil
}

func (t *Trainer) trainEpoch(epoch int) error {
	t.optimizer.IncEpoch()
	t.optimizer.IncBatch()

	trainATC, trainWaitTime, err := t.accuracy(t.trainBatch)
	if err != nil {
		return fmt.Errorf("train accuracy: %w", err)
	}
	t.history.TrainAccuracy.append(trainATC, trainWaitTime)

	validationATC, validationWaitTime, err := t.accuracy(t.validationBatch)
	if err != nil {
		return fmt.Errorf("validation accuracy: %w", err)
	}
	t.history.ValidationAccuracy.append(validationATC, validationWaitTime)

	atcLoss, waitTimeLoss, err := t.step(epoch)
	if err != nil {
		return err
	}
	t.history.Losses.append(atcLoss, waitTimeLoss)

	if shouldReport(epoch, t.params.ReportInterval) {
		lossValue := atcLoss + waitTimeLoss
		fmt.Fprintf(t.output, progressFormat, epoch+1, lossValue, atcLoss, waitTimeLoss)
		log.Debug().
			Int("Epoch", epoch+1).
			Float64("Loss", lossValue).
			Float64("TrainAccuracyATC", trainATC).
			Float64("TrainAccuracyWaitTime", trainWaitTime).
			Float64("ValidationAccuracyATC", validationATC).
			Float64("ValidationAccuracyWaitTime", validationWaitTime).
			Msg("")
	}
	return nil
}

// step computes both head losses with their gradients and updates the parameters
// with the sum of the gradients.
func (t *Trainer) step(epoch int) (float64, float64, error) {
	combined, atcLoss, waitTimeLoss, err := t.gradients(epoch)
	if err != nil {
		return 0, 0, err
	}
	setGradients(t.model.ParamsList(), combined)
	t.optimizer.Optimize()
	// adam starts at time step 1; advance it for the bias correction of the next step
	t.optimizer.IncExample()
	return atcLoss, waitTimeLoss, nil
}

func (t *Trainer) gradients(epoch int) ([]mat.Matrix, float64, float64, error) {
	atcLoss, atcGrads, err := t.headGradients(epoch, model.ATCCode)
	if err != nil {
		return nil, 0, 0, err
	}
	waitTimeLoss, waitTimeGrads, err := t.headGradients(epoch, model.WaitTime)
	if err != nil {
		return nil, 0, 0, err
	}
	combined, err := CombineGradients(atcGrads, waitTimeGrads)
	if err != nil {
		return nil, 0, 0, err
	}
	return combined, atcLoss, waitTimeLoss, nil
}

// headGradients evaluates the model on the training batch and back-propagates the
// loss of a single head. Both heads of an epoch use the same graph seed, so random
// operations such as dropout behave identically for the two evaluations.
func (t *Trainer) headGradients(epoch int, head model.Head) (float64, []mat.Matrix, error) {
	params := t.model.ParamsList()
	zeroGradients(params)

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(t.params.RndSeed + uint64(epoch))))
	defer g.Clear()
	outputs, err := forward(g, t.model, t.params.GradientMode, t.trainBatch.Inputs)
	if err != nil {
		return 0, nil, err
	}
	loss := meanLoss(g, t.lossFunc, outputs[head], t.trainBatch.Labels.For(head))
	value := loss.ScalarValue()
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, nil, fmt.Errorf("%w: %s loss %f", ErrNonFiniteLoss, head, value)
	}
	g.Backward(loss)
	return value, collectGradients(params), nil
}

// accuracy measures both heads on batch in inference mode.
func (t *Trainer) accuracy(batch io.Batch) (float64, float64, error) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(t.params.RndSeed)))
	defer g.Clear()
	outputs, err := forward(g, t.model, nn.Inference, batch.Inputs)
	if err != nil {
		return 0, 0, err
	}
	atc, err := Accuracy(predictClasses(outputs[model.ATCCode]), batch.Labels.ATC)
	if err != nil {
		return 0, 0, err
	}
	waitTime, err := Accuracy(predictClasses(outputs[model.WaitTime]), batch.Labels.WaitTime)
	if err != nil {
		return 0, 0, err
	}
	return atc, waitTime, nil
}

// shouldReport is true for the first epoch and every epoch whose 1-based number is a multiple of interval.
func shouldReport(epoch, interval int) bool {
	return epoch == 0 || (epoch+1)%interval == 0
}

func modeName(mode nn.ProcessingMode) string {
	if mode == nn.Inference {
		return "inference"
	}
	return "training"
}
