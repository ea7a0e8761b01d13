// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-search-service/internal/observability/logging"
	"voice-search-service/internal/service/audio"
	"voice-search-service/internal/service/stt"
)

// Errors returned by the Google recognizer.
var (
	ErrClosed = errors.New("google recognizer is closed")
	ErrBusy   = errors.New("google recognizer is already running a session")
)

// Config holds the streaming recognition settings.
type Config struct {
	LanguageCode    string
	SampleRateHz    int
	InterimResults  bool
	AudioEncoding   string
	NoSpeechTimeout time.Duration // No result within this window ends the session with no-speech
}

// DefaultConfig returns the settings used for voice search from a local microphone.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-US",
		SampleRateHz:    16000,
		InterimResults:  true,
		AudioEncoding:   "LINEAR16",
		NoSpeechTimeout: 8 * time.Second,
	}
}

// streamingClient is the part of speech.Client the recognizer uses.
type streamingClient interface {
	StreamingRecognize(ctx context.Context, opts ...gax.CallOption) (speechpb.Speech_StreamingRecognizeClient, error)
	Close() error
}

// Recognizer implements stt.Recognizer using Google Cloud Speech-to-Text.
// Each session is one single-utterance streaming request fed from an audio source.
type Recognizer struct {
	client streamingClient
	source audio.Source
	cfg    Config
	logger zerolog.Logger

	sessions sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	closed  bool
}

// New creates a Google recognizer reading audio from source.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, source audio.Source) (*Recognizer, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return newWithClient(c, cfg, source), nil
}

func newWithClient(c streamingClient, cfg Config, source audio.Source) *Recognizer {
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = DefaultConfig().NoSpeechTimeout
	}
	return &Recognizer{
		client: c,
		source: source,
		cfg:    cfg,
		logger: logging.WithEngine("recognizer", "google"),
	}
}

// Name identifies the engine.
func (r *Recognizer) Name() string {
	return "google"
}

// Start opens the audio source, begins a streaming recognition session and
// sends the initial config.
func (r *Recognizer) Start(ctx context.Context, cb stt.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.running {
		return ErrBusy
	}
	if err := r.source.Open(r.cfg.SampleRateHz); err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(r.cfg.AudioEncoding),
					SampleRateHertz: int32(r.cfg.SampleRateHz),
					LanguageCode:    r.cfg.LanguageCode,
				},
				SingleUtterance: true,
				InterimResults:  r.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.running = true

	stopSend := make(chan struct{})
	sendDone := make(chan struct{})
	r.sessions.Add(1)
	go func() {
		defer close(sendDone)
		r.sendAudio(sctx, stream, stopSend)
	}()
	go func() {
		defer r.sessions.Done()
		r.listen(sctx, cancel, stream, stopSend, sendDone, cb, done)
	}()
	return nil
}

// sendAudio forwards audio from the source until the utterance ends or the
// session is cancelled. It is the only goroutine calling Send and CloseSend.
func (r *Recognizer) sendAudio(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, stopSend <-chan struct{}) {
	defer stream.CloseSend()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopSend:
			return
		default:
		}

		pcm, err := r.source.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("Audio source read failed")
			}
			return
		}
		err = stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: pcm,
			},
		})
		if err != nil {
			// Recv reports the cause.
			return
		}
	}
}

type recvResult struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

// listen receives transcript responses from Google and invokes callbacks.
func (r *Recognizer) listen(
	ctx context.Context,
	cancel context.CancelFunc,
	stream speechpb.Speech_StreamingRecognizeClient,
	stopSend chan struct{},
	sendDone <-chan struct{},
	cb stt.Callback,
	done chan struct{},
) {
	defer close(done)
	defer cancel()

	recvCh := make(chan recvResult)
	go func() {
		for {
			resp, err := stream.Recv()
			select {
			case recvCh <- recvResult{resp, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(r.cfg.NoSpeechTimeout)
	defer timer.Stop()

	heard := false
	stopOnce := sync.Once{}
	endUtterance := func() { stopOnce.Do(func() { close(stopSend) }) }

	// finish releases the audio source before the terminal callback so the
	// subscriber can start the next session from inside that callback.
	finish := func() {
		endUtterance()
		cancel()
		<-sendDone
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			// Stopped by the subscriber: no further callbacks.
			return

		case <-timer.C:
			if !heard {
				finish()
				cb.OnError(stt.NewError(stt.ErrorNoSpeech, "no speech detected"))
				return
			}

		case rr := <-recvCh:
			if rr.err == io.EOF {
				finish()
				if !heard {
					cb.OnError(stt.NewError(stt.ErrorNoSpeech, "stream ended without results"))
					return
				}
				cb.OnEnd()
				return
			}
			if rr.err != nil {
				if ctx.Err() != nil {
					return
				}
				finish()
				cb.OnError(mapError(rr.err))
				return
			}
			if rr.resp.Error != nil && rr.resp.Error.Code != int32(codes.OK) {
				finish()
				cb.OnError(mapCode(codes.Code(rr.resp.Error.Code), rr.resp.Error.Message))
				return
			}
			if rr.resp.SpeechEventType == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
				endUtterance()
			}

			for _, res := range rr.resp.Results {
				if len(res.Alternatives) == 0 {
					continue
				}
				heard = true
				cb.OnResult(res.Alternatives[0].Transcript, res.IsFinal)
			}
		}
	}
}

// Stop cancels the running session and waits for it to exit.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Close stops any session, waits for every earlier session to exit, then
// releases the audio source and closes the client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.Stop()
	r.sessions.Wait()
	return errors.Join(r.source.Close(), r.client.Close())
}

func mapError(err error) *stt.RecognitionError {
	st, ok := status.FromError(err)
	if !ok {
		return stt.NewError(stt.ErrorNetwork, err.Error())
	}
	return mapCode(st.Code(), st.Message())
}

// mapCode translates gRPC status codes into recognition error codes.
func mapCode(code codes.Code, message string) *stt.RecognitionError {
	switch code {
	case codes.Canceled:
		return stt.NewError(stt.ErrorAborted, message)
	case codes.PermissionDenied, codes.Unauthenticated:
		return stt.NewError(stt.ErrorServiceNotAllowed, message)
	case codes.InvalidArgument:
		return stt.NewError(stt.ErrorLanguageUnsupported, message)
	case codes.OutOfRange:
		// Streaming limit reached while waiting for speech.
		return stt.NewError(stt.ErrorNoSpeech, message)
	default:
		return stt.NewError(stt.ErrorNetwork, message)
	}
}

// parseAudioEncoding converts a string encoding name to the Google Speech API enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
