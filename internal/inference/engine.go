// Package inference gathers the stored modalities for a (track, user)
// pair, assembles the model input and runs the forward pass.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"

	"gonum.org/v1/gonum/mat"

	"github.com/emoteam/emopipe/internal/biosignal"
	"github.com/emoteam/emopipe/internal/blob"
	"github.com/emoteam/emopipe/internal/config"
	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/features"
	"github.com/emoteam/emopipe/internal/logger"
	"github.com/emoteam/emopipe/internal/model"
)

// ModelSource hands out the shared read-only network.
type ModelSource interface {
	Get() (*model.Network, error)
}

// Engine runs predictions against stored artifacts.
type Engine struct {
	Store  blob.Store
	Models ModelSource
	Params config.ModelParams
	Logger *logger.Logger
}

func NewEngine(store blob.Store, models ModelSource, params config.ModelParams, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		Store:  store,
		Models: models,
		Params: params,
		Logger: log.WithComponent("inference"),
	}
}

// Predict gathers spectrogram, descriptors and the user's EDA reading,
// assembles the batch-of-one input and returns the two regression outputs.
// Any missing modality rejects the request before the model is touched.
func (e *Engine) Predict(ctx context.Context, trackID, userID string) (domain.PredictionResult, error) {
	var result domain.PredictionResult

	trackID = domain.NormalizeTrackID(trackID)
	if trackID == "" {
		return result, domain.InputError("track_id", "cannot be empty")
	}
	if userID == "" {
		return result, domain.InputError("user_id", "cannot be empty")
	}

	// Unknown namespace is its own failure class, distinct from a known
	// track with a missing modality.
	if _, err := e.Store.List(trackID); err != nil {
		return result, err
	}

	img, err := e.gatherSpectrogram(trackID)
	if err != nil {
		return result, err
	}
	featVec, err := e.gatherFeatures(trackID)
	if err != nil {
		return result, err
	}
	eda, err := e.gatherEDA(trackID, userID)
	if err != nil {
		return result, err
	}

	net, err := e.Models.Get()
	if err != nil {
		return result, err
	}

	arousal, valence, err := net.Predict(model.Input{
		Image:    img,
		EDA:      eda,
		Features: featVec,
	})
	if err != nil {
		return result, fmt.Errorf("forward pass failed: %w", err)
	}

	e.Logger.Info("Prediction complete", "track_id", trackID, "user_id", userID,
		"arousal", arousal, "valence", valence)

	return domain.PredictionResult{
		TrackID: trackID,
		Arousal: arousal,
		Valence: valence,
	}, nil
}

func (e *Engine) gatherSpectrogram(trackID string) (*mat.Dense, error) {
	raw, err := e.Store.Get(trackID, domain.KindSpectrogram, "")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: spectrogram for track %s", domain.ErrMissingModality, trackID)
		}
		return nil, err
	}
	return decodeRaster(raw)
}

func (e *Engine) gatherFeatures(trackID string) ([]float64, error) {
	raw, err := e.Store.Get(trackID, domain.KindFeatures, "")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: features for track %s", domain.ErrMissingModality, trackID)
		}
		return nil, err
	}
	vec, err := features.DecodeCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt features artifact: %w", err)
	}
	return vec.Values, nil
}

// gatherEDA loads and resamples every configured biosignal channel,
// falling back to the configured sample user when the requesting user has
// no stored reading.
func (e *Engine) gatherEDA(trackID, userID string) ([]float64, error) {
	out := make([]float64, 0, len(e.Params.EDAChannels)*constants.EDASampleCount)
	for _, channel := range e.Params.EDAChannels {
		raw, err := e.getEDAChannel(trackID, userID, channel)
		if err != nil {
			return nil, err
		}
		samples, err := biosignal.DecodePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt eda artifact: %w", err)
		}
		fixed, err := biosignal.Resample(samples)
		if err != nil {
			return nil, err
		}
		out = append(out, fixed...)
	}
	return out, nil
}

func (e *Engine) getEDAChannel(trackID, userID, channel string) ([]byte, error) {
	raw, err := e.Store.Get(trackID, domain.KindEDA, ChannelUser(userID, channel))
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if e.Params.DefaultEDAUser != "" && e.Params.DefaultEDAUser != userID {
		raw, err = e.Store.Get(trackID, domain.KindEDA, ChannelUser(e.Params.DefaultEDAUser, channel))
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: eda channel %q for user %s on track %s",
		domain.ErrMissingModality, channel, userID, trackID)
}

// ChannelUser builds the user key an EDA channel is stored under. The
// combined single-channel convention stores plain user ids; named
// channels get a suffix so both modality layouts coexist.
func ChannelUser(userID, channel string) string {
	if channel == "" || channel == "eda" {
		return userID
	}
	return userID + "-" + channel
}

// decodeRaster turns a stored grayscale PNG into a [0, 1] matrix.
func decodeRaster(data []byte) (*mat.Dense, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("corrupt spectrogram artifact: %w", err)
	}

	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	dense := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			dense.Set(y, x, float64(g.Y)/255.0)
		}
	}
	return dense, nil
}
