package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

// SaveModel はモデルを zstd 圧縮した gob 形式でファイルに保存する
//
// 使用例:
//
//	err := model.SaveModel(artifact, "model.gob.zst")
func SaveModel(v interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close model file")
		}
	}()

	return SaveModelToWriter(v, file)
}

// LoadModel はファイルからモデルを読み込む。v はポインタであること。
func LoadModel(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(v, file)
}

// SaveModelToWriter はモデルを w に書き出す
func SaveModelToWriter(v interface{}, w io.Writer) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return errors.Wrap(err, "failed to create zstd writer")
	}

	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "failed to encode model")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush model")
	}
	return nil
}

// LoadModelFromReader は r からモデルを読み込む
func LoadModelFromReader(v interface{}, r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "failed to create zstd reader")
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
