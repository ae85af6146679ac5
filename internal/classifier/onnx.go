package classifier

import (
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
	ortLib  string
)

// SetRuntimeLibrary sets the ONNX Runtime shared library used by LoadONNX.
// It must be called before the first ONNX model is loaded.
func SetRuntimeLibrary(path string) {
	ortLib = path
}

func initRuntime() error {
	ortOnce.Do(func() {
		if ortLib != "" {
			if _, err := os.Stat(ortLib); err != nil {
				ortErr = fmt.Errorf("onnxruntime library: %w", err)
				return
			}
			ort.SetSharedLibraryPath(ortLib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return ortErr
}

// ONNXModel runs a classifier exported to ONNX. The model takes a float32
// tensor of shape [1, inputs] and returns one score per class.
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  int
	classes int
}

// LoadONNX opens an ONNX classifier.
func LoadONNX(path string) (*ONNXModel, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, path)
		}
		return nil, err
	}
	if err := initRuntime(); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputInfo) != 1 || len(outputInfo) < 1 {
		return nil, fmt.Errorf("expected one input and at least one output, got %d and %d",
			len(inputInfo), len(outputInfo))
	}

	m := &ONNXModel{
		inputs:  lastDim(inputInfo[0].Dimensions),
		classes: lastDim(outputInfo[0].Dimensions),
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputInfo[0].Name}, []string{outputInfo[0].Name}, options)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	m.session = session
	return m, nil
}

// lastDim returns the last dimension of a shape, or 0 when it is dynamic.
func lastDim(shape ort.Shape) int {
	if len(shape) == 0 || shape[len(shape)-1] < 0 {
		return 0
	}
	return int(shape[len(shape)-1])
}

// Classes returns the number of outputs, or 0 if the model does not declare it.
func (m *ONNXModel) Classes() int {
	return m.classes
}

// Probabilities runs the model. Scores that do not already form a
// distribution are passed through softmax.
func (m *ONNXModel) Probabilities(x []float64) ([]float64, error) {
	if m.inputs > 0 && len(x) != m.inputs {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureSize, len(x), m.inputs)
	}

	input := make([]float32, len(x))
	for i, v := range x {
		input[i] = float32(v)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	scores := out.GetData()

	probs := make([]float64, len(scores))
	for i, v := range scores {
		probs[i] = float64(v)
	}
	if !isDistribution(probs) {
		softmax(probs)
	}
	return probs, nil
}

// Close destroys the session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

func isDistribution(v []float64) bool {
	sum := 0.0
	for _, x := range v {
		if x < 0 || x > 1 {
			return false
		}
		sum += x
	}
	return math.Abs(sum-1) < 1e-3
}

var _ Model = (*ONNXModel)(nil)
