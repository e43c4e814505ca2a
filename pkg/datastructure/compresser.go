package datastructure

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressData zstd-compresses inData into bbufOut. Snapshots are
// written once and read many times, so best compression wins.
func CompressData(inData []byte, bbufOut *bytes.Buffer) error {
	encoder, err := zstd.NewWriter(bbufOut, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	if _, err = io.Copy(encoder, bytes.NewBuffer(inData)); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}

func DecompressData(inData []byte, out io.Writer) error {
	decoder, err := zstd.NewReader(bytes.NewBuffer(inData))
	if err != nil {
		return err
	}
	defer decoder.Close()

	_, err = io.Copy(out, decoder)
	return err
}
