package tokenizer

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ModelType is the segmentation algorithm a SentencePiece model was trained with
type ModelType int32

// Model types as numbered in sentencepiece_model.proto
const (
	ModelUnigram ModelType = 1
	ModelBPE     ModelType = 2
	ModelWord    ModelType = 3
	ModelChar    ModelType = 4
)

// ModelProto.trainer_spec and TrainerSpec.model_type
const (
	trainerSpecField protowire.Number = 2
	modelTypeField   protowire.Number = 3
)

func (m ModelType) String() string {
	switch m {
	case ModelUnigram:
		return "unigram"
	case ModelBPE:
		return "bpe"
	case ModelWord:
		return "word"
	case ModelChar:
		return "char"
	default:
		return fmt.Sprintf("ModelType(%d)", int32(m))
	}
}

// ReadModelType extracts the model type from a serialized ModelProto. A model
// without a trainer spec or model type is unigram, the proto default.
func ReadModelType(data []byte) (ModelType, error) {
	modelType := ModelUnigram
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != trainerSpecField || typ != protowire.BytesType {
			return nil
		}
		spec, n := protowire.ConsumeBytes(value)
		if n < 0 {
			return protowire.ParseError(n)
		}
		return walkFields(spec, func(num protowire.Number, typ protowire.Type, value []byte) error {
			if num != modelTypeField || typ != protowire.VarintType {
				return nil
			}
			v, n := protowire.ConsumeVarint(value)
			if n < 0 {
				return protowire.ParseError(n)
			}
			modelType = ModelType(v)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("invalid model proto: %w", err)
	}
	return modelType, nil
}

// walkFields calls f for every top level field of a message; value starts at
// the field's payload
func walkFields(data []byte, f func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		if err := f(num, typ, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
