package model

import (
	"math"
	"math/rand"

	"github.com/skalibog/trendgym/pkg/models"
)

// minProb нижняя граница вероятности при расчете log-loss
const minProb = 1e-10

// Network полносвязная сеть: скрытый слой ReLU и softmax на три класса
type Network struct {
	Points       int         `json:"points"`
	LearningRate float64     `json:"learning_rate"`
	Steps        int         `json:"steps"`
	InputHidden  [][]float64 `json:"input_hidden"`
	HiddenOutput [][]float64 `json:"hidden_output"`
	HiddenBiases []float64   `json:"hidden_biases"`
	OutputBiases []float64   `json:"output_biases"`
}

// NewNetwork создает сеть со случайными малыми весами
func NewNetwork(points, hidden int, learningRate float64, rng *rand.Rand) *Network {
	inputs := FeatureSize(points)

	small := func() float64 { return (rng.Float64() - 0.5) * 0.1 }

	inputHidden := make([][]float64, inputs)
	for i := range inputHidden {
		inputHidden[i] = make([]float64, hidden)
		for j := range inputHidden[i] {
			inputHidden[i][j] = small()
		}
	}

	hiddenOutput := make([][]float64, hidden)
	for i := range hiddenOutput {
		hiddenOutput[i] = make([]float64, models.TrendClasses)
		for j := range hiddenOutput[i] {
			hiddenOutput[i][j] = small()
		}
	}

	hiddenBiases := make([]float64, hidden)
	for i := range hiddenBiases {
		hiddenBiases[i] = small()
	}
	outputBiases := make([]float64, models.TrendClasses)
	for i := range outputBiases {
		outputBiases[i] = small()
	}

	return &Network{
		Points:       points,
		LearningRate: learningRate,
		InputHidden:  inputHidden,
		HiddenOutput: hiddenOutput,
		HiddenBiases: hiddenBiases,
		OutputBiases: outputBiases,
	}
}

// TrainStep прогноз, затем одно обновление весов по цели
func (n *Network) TrainStep(in Input, target [models.TrendClasses]float64) Metrics {
	features := Features(in, n.Points)
	hidden, probs := n.forward(features)

	metrics := Metrics{Loss: crossEntropy(probs, target)}
	if argmax(probs) == argmax(target[:]) {
		metrics.Accuracy = 1
	}

	n.backpropagate(features, hidden, probs, target)
	n.Steps++
	return metrics
}

// Evaluate средние значения по выборке; пустая выборка дает нули
func (n *Network) Evaluate(ins []Input, targets [][models.TrendClasses]float64) Metrics {
	if len(ins) == 0 || len(ins) != len(targets) {
		return Metrics{}
	}

	var loss float64
	correct := 0
	for i, in := range ins {
		_, probs := n.forward(Features(in, n.Points))
		loss += crossEntropy(probs, targets[i])
		if argmax(probs) == argmax(targets[i][:]) {
			correct++
		}
	}

	return Metrics{
		Loss:     loss / float64(len(ins)),
		Accuracy: float64(correct) / float64(len(ins)),
	}
}

// Predict класс с наибольшей вероятностью
func (n *Network) Predict(in Input) (models.Trend, []float64) {
	_, probs := n.forward(Features(in, n.Points))
	trend, _ := models.TrendFromClass(argmax(probs))
	return trend, probs
}

func (n *Network) forward(features []float64) ([]float64, []float64) {
	hidden := make([]float64, len(n.HiddenBiases))
	for j := range hidden {
		sum := n.HiddenBiases[j]
		for i, f := range features {
			sum += f * n.InputHidden[i][j]
		}
		hidden[j] = math.Max(sum, 0)
	}

	scores := make([]float64, len(n.OutputBiases))
	for k := range scores {
		sum := n.OutputBiases[k]
		for j, h := range hidden {
			sum += h * n.HiddenOutput[j][k]
		}
		scores[k] = sum
	}

	return hidden, softmax(scores)
}

func (n *Network) backpropagate(features, hidden, probs []float64, target [models.TrendClasses]float64) {
	outputErrors := make([]float64, len(probs))
	for k := range probs {
		outputErrors[k] = probs[k] - target[k]
	}

	// ошибки скрытого слоя считаются по весам до обновления
	hiddenErrors := make([]float64, len(hidden))
	for j := range hidden {
		if hidden[j] <= 0 {
			continue
		}
		for k, e := range outputErrors {
			hiddenErrors[j] += e * n.HiddenOutput[j][k]
		}
	}

	for j := range n.HiddenOutput {
		for k := range n.HiddenOutput[j] {
			n.HiddenOutput[j][k] -= n.LearningRate * outputErrors[k] * hidden[j]
		}
	}
	for k := range n.OutputBiases {
		n.OutputBiases[k] -= n.LearningRate * outputErrors[k]
	}

	for i := range n.InputHidden {
		for j := range n.InputHidden[i] {
			n.InputHidden[i][j] -= n.LearningRate * hiddenErrors[j] * features[i]
		}
	}
	for j := range n.HiddenBiases {
		n.HiddenBiases[j] -= n.LearningRate * hiddenErrors[j]
	}
}

// validShape проверяет размерности после десериализации
func (n *Network) validShape() bool {
	if n.Points < 1 || len(n.InputHidden) != FeatureSize(n.Points) {
		return false
	}
	hidden := len(n.HiddenBiases)
	if hidden == 0 || len(n.HiddenOutput) != hidden || len(n.OutputBiases) != models.TrendClasses {
		return false
	}
	for _, row := range n.InputHidden {
		if len(row) != hidden {
			return false
		}
	}
	for _, row := range n.HiddenOutput {
		if len(row) != models.TrendClasses {
			return false
		}
	}
	return true
}

func crossEntropy(probs []float64, target [models.TrendClasses]float64) float64 {
	loss := 0.0
	for k, t := range target {
		if t == 0 {
			continue
		}
		loss -= t * math.Log(math.Max(probs[k], minProb))
	}
	return loss
}

func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	sum := 0.0
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
