package speech

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CreateProvider creates a speech provider by name. An empty name selects
// baidu when a token source is available and mock otherwise.
func CreateProvider(name string, cfg BaiduConfig, tokens TokenSource, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	providerName := strings.ToLower(strings.TrimSpace(name))

	if providerName == "" {
		if tokens != nil {
			providerName = "baidu"
		} else {
			providerName = "mock"
		}
		logger.Info("SPEECH_PROVIDER not set, choosing by credentials", zap.String("provider", providerName))
	}

	switch providerName {
	case "baidu":
		if tokens == nil {
			return nil, fmt.Errorf("baidu speech provider requires BAIDU_API_KEY and BAIDU_SECRET_KEY")
		}
		logger.Info("creating baidu speech provider", zap.String("asr_url", cfg.ASRURL), zap.String("tts_url", cfg.TTSURL))
		return NewBaiduProvider(cfg, tokens, logger), nil
	case "mock":
		logger.Warn("using mock speech provider, recognition and synthesis are simulated")
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported speech provider: %s. Supported: baidu, mock", providerName)
	}
}
