package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT",
		"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_MODEL", "DEEPSEEK_MAX_TOKENS",
		"DEEPSEEK_TEMPERATURE", "DEEPSEEK_TOP_P", "DEEPSEEK_TIMEOUT",
		"SPEECH_PROVIDER", "BAIDU_APP_ID", "BAIDU_API_KEY", "BAIDU_SECRET_KEY",
		"BAIDU_TOKEN_URL", "BAIDU_ASR_URL", "BAIDU_TTS_URL", "BAIDU_CUID", "BAIDU_DEV_PID",
		"SPEECH_TIMEOUT", "TOKEN_STORE", "TOKEN_CACHE_FILE", "TOKEN_REDIS_KEY",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"TTS_VOICE_ID", "TTS_SPEED_OFFSET", "TTS_PITCH_OFFSET", "TTS_VOLUME_OFFSET",
		"DATABASE_URL", "MAX_UPLOAD_BYTES", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "sk-test", cfg.DeepSeek.APIKey)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
	assert.Equal(t, 25*time.Second, cfg.DeepSeek.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, 1537, cfg.Speech.DevPID)
	assert.Equal(t, TokenStoreFile, cfg.Token.Store)
	assert.Equal(t, "baidu_token_cache.json", cfg.Token.CacheFile)
	assert.Equal(t, 4115, cfg.TTS.VoiceID)
	assert.Equal(t, 1, cfg.TTS.SpeedOffset)
	assert.Equal(t, 1, cfg.TTS.PitchOffset)
	assert.Equal(t, 0, cfg.TTS.VolumeOffset)
	assert.Equal(t, int64(10<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.False(t, cfg.Speech.HasCredentials())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("PORT", "9000")
	t.Setenv("BAIDU_API_KEY", "ak")
	t.Setenv("BAIDU_SECRET_KEY", "sk")
	t.Setenv("SPEECH_TIMEOUT", "12")
	t.Setenv("DEEPSEEK_TIMEOUT", "1m")
	t.Setenv("DEEPSEEK_TEMPERATURE", "0.2")
	t.Setenv("TOKEN_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TTS_SPEED_OFFSET", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.Speech.HasCredentials())
	assert.Equal(t, 12*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, time.Minute, cfg.DeepSeek.Timeout)
	assert.InDelta(t, 0.2, cfg.DeepSeek.Temperature, 1e-9)
	assert.Equal(t, TokenStoreRedis, cfg.Token.Store)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 0, cfg.TTS.SpeedOffset)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, cfg.HTTP.CORSAllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric int", "REDIS_DB", "zero"},
		{"bad duration", "SPEECH_TIMEOUT", "soon"},
		{"bad float", "RATE_LIMIT_RPS", "fast"},
		{"unknown token store", "TOKEN_STORE", "memcached"},
		{"unknown provider", "SPEECH_PROVIDER", "azure"},
		{"zero upload limit", "MAX_UPLOAD_BYTES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DEEPSEEK_API_KEY", "sk-test")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
deepseek:
  api_key: sk-from-file
  timeout: 40s
speech:
  provider: mock
  timeout: 15s
tts:
  voice_id: 0
  pitch_offset: 2
http:
  rate_limit_rps: 1.5
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Port, "env wins over file")
	assert.Equal(t, "sk-from-file", cfg.DeepSeek.APIKey)
	assert.Equal(t, 40*time.Second, cfg.DeepSeek.Timeout)
	assert.Equal(t, "mock", cfg.Speech.Provider)
	assert.Equal(t, 15*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, 0, cfg.TTS.VoiceID)
	assert.Equal(t, 2, cfg.TTS.PitchOffset)
	assert.Equal(t, 1, cfg.TTS.SpeedOffset, "untouched keys keep defaults")
	assert.InDelta(t, 1.5, cfg.HTTP.RateLimitRPS, 1e-9)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
