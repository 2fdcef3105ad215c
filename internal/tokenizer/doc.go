// Package tokenizer wraps SentencePiece subword models. Text is split into
// pieces on the source side and pieces are joined back into text on the
// target side; the piece inventory itself is owned by the model file. BPE
// models run in process, every other model type runs in a sentencepiece
// worker.
package tokenizer
