package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"digitalhuman/internal/model"
	"digitalhuman/internal/speech"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLevel = 5
	// multipart framing on top of the audio itself
	multipartOverhead = 1 << 20
)

// uploadFormats maps accepted upload extensions to the label sent to the gateway
var uploadFormats = map[string]string{
	".wav":  speech.FormatWAV,
	".mp3":  speech.FormatMP3,
	".pcm":  speech.FormatPCM,
	".webm": "webm",
	".ogg":  "ogg",
}

// ASRResponse is the body of every /asr reply
type ASRResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	ErrorCode  int     `json:"error_code,omitempty"`
}

// TTSRequest is the body of a /tts call. Levels default to 5.
type TTSRequest struct {
	Text    string `json:"text"`
	VoiceID *int   `json:"voice_id"`
	Voice   string `json:"voice"`
	Speed   *int   `json:"speed"`
	Pitch   *int   `json:"pitch"`
	Volume  *int   `json:"volume"`
}

// recognize handles POST /asr. Every outcome is reported with status 200
// and success=false on failure, as the frontend expects.
func (h *Handler) recognize(c *gin.Context) {
	limit := h.opts.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	file, err := formAudioFile(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusOK, h.asrTooLarge())
			return
		}
		h.logger.Warn("no audio in upload", zap.Error(err))
		c.JSON(http.StatusOK, ASRResponse{Message: "audio_file is required"})
		return
	}

	if file.Size > limit {
		c.JSON(http.StatusOK, h.asrTooLarge())
		return
	}

	audio, err := readUpload(file)
	if err != nil {
		h.logger.Warn("failed to read upload", zap.Error(err))
		c.JSON(http.StatusOK, ASRResponse{Message: "语音识别失败: " + err.Error()})
		return
	}
	if len(audio) == 0 {
		c.JSON(http.StatusOK, ASRResponse{Message: "音频文件为空"})
		return
	}

	format, ok := detectFormat(file.Filename, audio)
	if !ok {
		c.JSON(http.StatusOK, ASRResponse{Message: "不支持的音频格式，请使用: .wav, .mp3, .pcm, .webm, .ogg"})
		return
	}

	h.logger.Info("audio received",
		zap.String("filename", file.Filename),
		zap.String("format", format),
		zap.String("size", humanize.Bytes(uint64(len(audio)))))

	start := time.Now()
	result := h.speech.Recognize(c.Request.Context(), speech.RecognizeRequest{
		Audio:      audio,
		Format:     format,
		SampleRate: speech.DefaultSampleRate,
	})
	elapsed := time.Since(start)

	h.recordSpeech("asr", result, elapsed, len(audio))

	in := model.NewInteraction(model.KindASR, h.speech.Name(), file.Filename)
	in.AudioFormat = stringPtr(format)
	in.AudioSizeBytes = intPtr(len(audio))
	in.ProcessingTimeMs = int(elapsed.Milliseconds())
	applyResult(in, result)
	if result.OK() {
		in.Output = stringPtr(result.Text)
		in.Confidence = &result.Confidence
	}
	h.record(c.Request.Context(), in)

	if !result.OK() {
		c.JSON(http.StatusOK, ASRResponse{
			Message:   asrFailureMessage(result.Failure),
			ErrorCode: result.Failure.Code,
		})
		return
	}

	message := "识别成功"
	if h.speech.Name() == "mock" {
		message = "模拟识别成功（百度语音API不可用）"
	}
	c.JSON(http.StatusOK, ASRResponse{
		Text:       result.Text,
		Confidence: result.Confidence,
		Success:    true,
		Message:    message,
	})
}

func (h *Handler) asrTooLarge() ASRResponse {
	return ASRResponse{Message: fmt.Sprintf("音频文件过大，请限制在%s以内", humanize.IBytes(uint64(h.opts.MaxUploadBytes)))}
}

// synthesize handles POST /tts and streams back WAV audio
func (h *Handler) synthesize(c *gin.Context) {
	var req TTSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "文本不能为空"})
		return
	}
	if utf8.RuneCountInString(req.Text) > speech.MaxTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("文本长度超过限制（%d字符）", speech.MaxTextLength)})
		return
	}

	synth := speech.SynthesizeRequest{
		Text:    req.Text,
		VoiceID: h.voiceFor(req),
		Speed:   levelOrDefault(req.Speed) + h.opts.SpeedOffset,
		Pitch:   levelOrDefault(req.Pitch) + h.opts.PitchOffset,
		Volume:  levelOrDefault(req.Volume) + h.opts.VolumeOffset,
	}

	start := time.Now()
	result := h.speech.Synthesize(c.Request.Context(), synth)
	elapsed := time.Since(start)

	h.recordSpeech("tts", result, elapsed, len(result.Audio))

	in := model.NewInteraction(model.KindTTS, h.speech.Name(), req.Text)
	in.ProcessingTimeMs = int(elapsed.Milliseconds())
	in.Metadata["voice_id"] = synth.VoiceID
	in.Metadata["speed"] = speech.Clamp(synth.Speed)
	in.Metadata["pitch"] = speech.Clamp(synth.Pitch)
	in.Metadata["volume"] = speech.Clamp(synth.Volume)
	applyResult(in, result)
	if result.OK() {
		in.AudioFormat = stringPtr(speech.FormatWAV)
		in.AudioSizeBytes = intPtr(len(result.Audio))
	}
	h.record(c.Request.Context(), in)

	if !result.OK() {
		c.JSON(ttsStatus(result.Failure), gin.H{
			"detail":     "文本转语音失败: " + result.Failure.Message,
			"error_code": result.Failure.Code,
			"reason":     string(result.Failure.Reason),
		})
		return
	}

	filename := "tts_audio.wav"
	if h.speech.Name() == "mock" {
		filename = "mock_tts_audio.wav"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, audioContentType(result.Audio), result.Audio)
}

// speechStatus handles GET /speech_status
func (h *Handler) speechStatus(c *gin.Context) {
	available := h.speech.Name() == "baidu"

	appID := h.opts.BaiduAppID
	if !available || appID == "" {
		appID = "未配置"
	}

	resp := gin.H{
		"baidu_speech_available": available,
		"asr_enabled":            available,
		"tts_enabled":            available,
		"provider":               h.speech.Name(),
		"app_id":                 appID,
		"token_cached":           false,
	}
	if h.tokens != nil {
		if tok, ok := h.tokens.Current(); ok {
			resp["token_cached"] = true
			resp["token_expires_at"] = tok.ExpiresAt.Format(time.RFC3339)
		}
	}
	if available {
		resp["message"] = "百度语音服务正常"
	} else {
		resp["message"] = "百度语音服务不可用"
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) voiceFor(req TTSRequest) int {
	if req.VoiceID != nil {
		return *req.VoiceID
	}
	if v, err := strconv.Atoi(strings.TrimSpace(req.Voice)); err == nil {
		return v
	}
	return h.opts.VoiceID
}

func (h *Handler) recordSpeech(operation string, result speech.Result, elapsed time.Duration, audioBytes int) {
	if h.metrics == nil {
		return
	}
	reason := ""
	if result.Failure != nil {
		reason = string(result.Failure.Reason)
	}
	h.metrics.RecordSpeech(operation, reason, elapsed, audioBytes)
}

// applyResult copies the outcome of a gateway call onto the record
func applyResult(in *model.Interaction, result speech.Result) {
	if result.OK() {
		in.Status = model.StatusSuccess
		return
	}
	in.Status = model.StatusFailed
	in.ErrorCode = intPtr(result.Failure.Code)
	in.ErrorMessage = stringPtr(result.Failure.Message)
	in.Metadata["reason"] = string(result.Failure.Reason)
}

func asrFailureMessage(f *speech.Failure) string {
	switch f.Reason {
	case speech.ReasonVendorError:
		return fmt.Sprintf("识别失败，错误码: %d, 错误信息: %s", f.Code, f.Message)
	case speech.ReasonNoToken:
		return "语音识别失败: 无法获取百度访问令牌"
	case speech.ReasonHTTPError:
		return fmt.Sprintf("语音识别失败: HTTP %d", f.Code)
	default:
		return "语音识别失败: " + f.Message
	}
}

func ttsStatus(f *speech.Failure) int {
	switch f.Reason {
	case speech.ReasonNoToken:
		return http.StatusServiceUnavailable
	case speech.ReasonInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func levelOrDefault(v *int) int {
	if v == nil {
		return defaultLevel
	}
	return *v
}

// formAudioFile accepts the upload under any of the field names the
// frontends use
func formAudioFile(c *gin.Context) (*multipart.FileHeader, error) {
	var firstErr error
	for _, field := range []string{"audio_file", "audio", "file"} {
		file, err := c.FormFile(field)
		if err == nil {
			return file, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// detectFormat picks the encoding label from the file extension, falling
// back to content sniffing when the extension is missing or unknown
func detectFormat(filename string, audio []byte) (string, bool) {
	if format, ok := uploadFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return format, true
	}
	mt := mimetype.Detect(audio)
	for m := mt; m != nil; m = m.Parent() {
		if format, ok := uploadFormats[m.Extension()]; ok {
			return format, true
		}
	}
	return "", false
}

func audioContentType(audio []byte) string {
	mt := mimetype.Detect(audio)
	if strings.HasPrefix(mt.String(), "audio/") {
		return mt.String()
	}
	return "audio/wav"
}
