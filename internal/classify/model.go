//nolint:tagliatelle
package classify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/farcloser/primordium/fault"
	"gonum.org/v1/gonum/mat"
)

// document is the persisted form of every classifier kind.
type document struct {
	Kind       Kind        `json:"kind"`
	Tree       *Node       `json:"tree,omitempty"`
	Thresholds Thresholds  `json:"thresholds,omitempty"`
	Ratios     Ratios      `json:"ratios,omitempty"`
	Members    []document  `json:"members,omitempty"`
	Scaler     *Scaler     `json:"scaler,omitempty"`
	Hidden     [][]float64 `json:"hidden,omitempty"`
	Output     []float64   `json:"output,omitempty"`
	Weights    []float64   `json:"weights,omitempty"`
	Bias       float64     `json:"bias,omitempty"`
}

// Save writes the classifier as JSON.
func Save(w io.Writer, c Classifier) error {
	doc, err := encode(c)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err = enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return nil
}

// Load reads a classifier written by Save. Callers decide whether a failure falls back to a default classifier.
func Load(r io.Reader) (Classifier, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return decode(doc)
}

// SaveFile writes the classifier to path.
func SaveFile(path string, c Classifier) error {
	file, err := os.Create(path) //nolint:gosec // user selected output path
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}

	if err = Save(file, c); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

// LoadFile reads a classifier from path.
func LoadFile(path string) (Classifier, error) {
	file, err := os.Open(path) //nolint:gosec // user selected model path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer file.Close()

	return Load(file)
}

func encode(c Classifier) (document, error) {
	switch v := c.(type) {
	case nil:
		return document{}, errNilClassifier
	case *Tree:
		return document{Kind: KindTree, Tree: v.Root}, nil
	case Thresholds:
		return document{Kind: KindThresholds, Thresholds: v}, nil
	case Ratios:
		return document{Kind: KindRatios, Ratios: v}, nil
	case All:
		doc := document{Kind: KindAll}

		for _, member := range v {
			sub, err := encode(member)
			if err != nil {
				return document{}, err
			}

			doc.Members = append(doc.Members, sub)
		}

		return doc, nil
	case *Linear:
		return document{Kind: KindLinear, Scaler: &v.scaler, Weights: v.weights, Bias: v.bias}, nil
	case *Network:
		units, _ := v.hidden.Dims()
		rows := make([][]float64, units)

		for j := range units {
			rows[j] = mat.Row(nil, j, v.hidden)
		}

		return document{
			Kind:   KindNetwork,
			Scaler: &v.scaler,
			Hidden: rows,
			Output: mat.Col(nil, 0, v.output),
		}, nil
	default:
		return document{}, fmt.Errorf("%w: %T", ErrUnknownKind, c)
	}
}

func decode(doc document) (Classifier, error) {
	switch doc.Kind {
	case KindTree:
		if doc.Tree == nil {
			return nil, fmt.Errorf("%w: tree without root", ErrInvalidModel)
		}

		return &Tree{Root: doc.Tree}, nil
	case KindThresholds:
		if len(doc.Thresholds) == 0 {
			return nil, fmt.Errorf("%w: no thresholds", ErrInvalidModel)
		}

		return doc.Thresholds, nil
	case KindRatios:
		if len(doc.Ratios) == 0 {
			return nil, fmt.Errorf("%w: no ratios", ErrInvalidModel)
		}

		return doc.Ratios, nil
	case KindAll:
		all := make(All, 0, len(doc.Members))

		for _, member := range doc.Members {
			c, err := decode(member)
			if err != nil {
				return nil, err
			}

			all = append(all, c)
		}

		if len(all) == 0 {
			return nil, fmt.Errorf("%w: empty conjunction", ErrInvalidModel)
		}

		return all, nil
	case KindLinear:
		if doc.Scaler == nil {
			return nil, fmt.Errorf("%w: linear model without scaler", ErrInvalidModel)
		}

		linear, err := NewLinear(*doc.Scaler, doc.Weights, doc.Bias)
		if err != nil {
			return nil, err
		}

		return linear, nil
	case KindNetwork:
		if doc.Scaler == nil || len(doc.Hidden) == 0 {
			return nil, fmt.Errorf("%w: network without scaler or weights", ErrInvalidModel)
		}

		cols := len(doc.Hidden[0])
		data := make([]float64, 0, len(doc.Hidden)*cols)

		for _, row := range doc.Hidden {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: ragged hidden layer", ErrInvalidModel)
			}

			data = append(data, row...)
		}

		if cols == 0 || len(doc.Output) == 0 {
			return nil, fmt.Errorf("%w: empty layer", ErrInvalidModel)
		}

		network, err := NewNetwork(
			*doc.Scaler,
			mat.NewDense(len(doc.Hidden), cols, data),
			mat.NewVecDense(len(doc.Output), doc.Output),
		)
		if err != nil {
			return nil, err
		}

		return network, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}
}
