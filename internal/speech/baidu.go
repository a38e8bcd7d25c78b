package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	DefaultASRURL  = "https://vop.baidu.com/server_api"
	DefaultTTSURL  = "https://tsn.baidu.com/text2audio"
	DefaultCUID    = "tuxuyan_digital_human"
	DefaultDevPID  = 1537 // Mandarin
	DefaultVoiceID = 4115
	DefaultTimeout = 30 * time.Second

	ttsEncodingWAV = 6
	ttsClientType  = 1
	ttsLanguage    = "zh"
	asrChannels    = 1
)

// TokenSource hands out a bearer token; "" means no token is available
type TokenSource interface {
	Token(ctx context.Context) string
}

// BaiduConfig holds the endpoints and fixed identifiers of the Baidu speech API
type BaiduConfig struct {
	ASRURL  string
	TTSURL  string
	CUID    string
	DevPID  int
	Timeout time.Duration
}

// BaiduProvider implements speech recognition and synthesis using the
// Baidu speech REST API
type BaiduProvider struct {
	cfg        BaiduConfig
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// BaiduOption customises a BaiduProvider
type BaiduOption func(*BaiduProvider)

// WithBaiduHTTPClient replaces the HTTP client used for vendor calls
func WithBaiduHTTPClient(client *http.Client) BaiduOption {
	return func(p *BaiduProvider) {
		p.httpClient = client
	}
}

// NewBaiduProvider creates a new Baidu speech provider
func NewBaiduProvider(cfg BaiduConfig, tokens TokenSource, logger *zap.Logger, opts ...BaiduOption) *BaiduProvider {
	if cfg.ASRURL == "" {
		cfg.ASRURL = DefaultASRURL
	}
	if cfg.TTSURL == "" {
		cfg.TTSURL = DefaultTTSURL
	}
	if cfg.CUID == "" {
		cfg.CUID = DefaultCUID
	}
	if cfg.DevPID == 0 {
		cfg.DevPID = DefaultDevPID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &BaiduProvider{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "baidu_speech")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *BaiduProvider) Name() string {
	return "baidu"
}

// asrPayload is the JSON body of a recognition request
type asrPayload struct {
	Format  string `json:"format"`
	Rate    int    `json:"rate"`
	Channel int    `json:"channel"`
	CUID    string `json:"cuid"`
	Token   string `json:"token"`
	DevPID  int    `json:"dev_pid"`
	Speech  string `json:"speech"`
	Len     int    `json:"len"`
}

// asrResponse represents the Baidu recognition response
type asrResponse struct {
	ErrNo      *int     `json:"err_no"`
	ErrMsg     string   `json:"err_msg"`
	SN         string   `json:"sn"`
	Result     []string `json:"result"`
	Confidence float64  `json:"confidence"`
}

// vendorError is the JSON body the synthesis endpoint returns instead of audio
type vendorError struct {
	ErrNo  *int   `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	SN     string `json:"sn"`
}

// Recognize sends audio to the recognition endpoint and returns the transcript
func (p *BaiduProvider) Recognize(ctx context.Context, req RecognizeRequest) Result {
	if len(req.Audio) == 0 {
		return Failed(ReasonInvalidRequest, -1, "audio is empty")
	}

	format, relabeled := NormalizeFormat(req.Format)
	if relabeled {
		p.logger.Debug("relabeling audio format",
			zap.String("from", req.Format), zap.String("to", format))
	}

	rate := req.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	tok := p.tokens.Token(ctx)
	if tok == "" {
		return Failed(ReasonNoToken, -1, "no token")
	}

	payload, err := json.Marshal(asrPayload{
		Format:  format,
		Rate:    rate,
		Channel: asrChannels,
		CUID:    p.cfg.CUID,
		Token:   tok,
		DevPID:  p.cfg.DevPID,
		Speech:  base64.StdEncoding.EncodeToString(req.Audio),
		Len:     len(req.Audio),
	})
	if err != nil {
		return Failed(ReasonTransport, -1, fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ASRURL, bytes.NewReader(payload))
	if err != nil {
		return Failed(ReasonTransport, -1, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	p.logger.Info("sending recognition request",
		zap.String("format", format),
		zap.Int("rate", rate),
		zap.String("size", humanize.Bytes(uint64(len(req.Audio)))))

	status, _, body, failure := p.do(httpReq)
	if failure != nil {
		return *failure
	}
	if status != http.StatusOK {
		p.logger.Warn("recognition request failed", zap.Int("status", status), zap.String("body", preview(body)))
		return Failed(ReasonHTTPError, status, "HTTP error")
	}

	var r asrResponse
	if err := json.Unmarshal(body, &r); err != nil {
		p.logger.Warn("failed to parse recognition response", zap.String("body", preview(body)))
		return Failed(ReasonUnexpectedResponse, -1, fmt.Sprintf("failed to parse recognition response: %v", err))
	}
	if r.ErrNo == nil {
		return Failed(ReasonUnexpectedResponse, -1, "recognition response has no err_no")
	}
	if *r.ErrNo != 0 {
		p.logger.Warn("recognition rejected by vendor",
			zap.Int("err_no", *r.ErrNo), zap.String("err_msg", r.ErrMsg), zap.String("sn", r.SN))
		return Failed(ReasonVendorError, *r.ErrNo, r.ErrMsg)
	}

	text := strings.Join(r.Result, "")
	p.logger.Info("recognition successful", zap.Int("length", len([]rune(text))))
	return Recognized(text, NormalizeConfidence(r.Confidence))
}

// Synthesize converts text to WAV audio
func (p *BaiduProvider) Synthesize(ctx context.Context, req SynthesizeRequest) Result {
	if failed := checkText(req.Text); failed != nil {
		return *failed
	}

	speed, pitch, volume := Clamp(req.Speed), Clamp(req.Pitch), Clamp(req.Volume)

	tok := p.tokens.Token(ctx)
	if tok == "" {
		return Failed(ReasonNoToken, -1, "no token")
	}

	form := url.Values{}
	form.Set("tex", req.Text)
	form.Set("tok", tok)
	form.Set("cuid", p.cfg.CUID)
	form.Set("ctp", strconv.Itoa(ttsClientType))
	form.Set("lan", ttsLanguage)
	form.Set("spd", strconv.Itoa(speed))
	form.Set("pit", strconv.Itoa(pitch))
	form.Set("vol", strconv.Itoa(volume))
	form.Set("per", strconv.Itoa(req.VoiceID))
	form.Set("aue", strconv.Itoa(ttsEncodingWAV))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TTSURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Failed(ReasonTransport, -1, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p.logger.Info("sending synthesis request",
		zap.Int("characters", len([]rune(req.Text))),
		zap.Int("voice", req.VoiceID),
		zap.Int("speed", speed), zap.Int("pitch", pitch), zap.Int("volume", volume))

	status, contentType, body, failure := p.do(httpReq)
	if failure != nil {
		return *failure
	}
	if status != http.StatusOK {
		p.logger.Warn("synthesis request failed", zap.Int("status", status), zap.String("body", preview(body)))
		return Failed(ReasonHTTPError, status, "HTTP error")
	}

	result := decodeSynthesis(contentType, body)
	if result.OK() {
		p.logger.Info("synthesis successful", zap.String("size", humanize.Bytes(uint64(len(result.Audio)))))
	} else {
		p.logger.Warn("synthesis rejected", zap.Error(result.Failure), zap.String("body", preview(body)))
	}
	return result
}

// decodeSynthesis resolves the audio-or-JSON ambiguity of a 200 response.
// An audio content type wins; otherwise a JSON body is an error report and
// any other body is taken as audio whose header the vendor omitted.
func decodeSynthesis(contentType string, body []byte) Result {
	if strings.Contains(strings.ToLower(contentType), "audio") {
		if len(body) == 0 {
			return Failed(ReasonUnexpectedResponse, -1, "empty audio body")
		}
		return Synthesized(body)
	}

	var ve vendorError
	if err := json.Unmarshal(body, &ve); err == nil {
		if ve.ErrNo != nil && *ve.ErrNo != 0 {
			return Failed(ReasonVendorError, *ve.ErrNo, ve.ErrMsg)
		}
		return Failed(ReasonUnexpectedResponse, -1, "synthesis returned JSON without audio: "+preview(body))
	}

	if len(body) == 0 {
		return Failed(ReasonUnexpectedResponse, -1, "empty response body")
	}
	return Synthesized(body)
}

// do sends the request and reads the whole body. Transport failures come
// back as a ready-made Result.
func (p *BaiduProvider) do(req *http.Request) (int, string, []byte, *Result) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		r := Failed(ReasonTransport, -1, err.Error())
		return 0, "", nil, &r
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r := Failed(ReasonTransport, -1, fmt.Sprintf("failed to read response body: %v", err))
		return 0, "", nil, &r
	}

	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
