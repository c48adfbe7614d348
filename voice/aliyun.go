package voice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/internal/httpclient"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/roster"
)

const (
	aliyunEndpoint   = "https://dyvmsapi.aliyuncs.com/"
	aliyunAPIVersion = "2017-05-25"
	aliyunAction     = "SingleCallByTts"

	// rateLimitBackoff is the retry-after hint attached when the provider
	// reports flow control without its own hint.
	rateLimitBackoff = time.Minute
)

// AliyunCaller places calls through the Aliyun VMS SingleCallByTts RPC
// API. Speech synthesis happens provider-side from a pre-approved TTS
// template (the tts_code), fed with the rendered params.
type AliyunCaller struct {
	client     *httpclient.Client
	endpoint   string
	keyID      string
	keySecret  string
	showNumber string
	ttsCode    string
	region     string

	now   func() time.Time // injectable for signature tests
	nonce func() string
}

// NewAliyunCaller wires a caller from provider config. Credentials are
// validated here so a misconfigured caller fails at construction, not
// mid-batch.
func NewAliyunCaller(cfg am.ProviderConfig) (*AliyunCaller, error) {
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}
	return &AliyunCaller{
		client:     httpclient.New(time.Duration(cfg.TimeoutSeconds) * time.Second),
		endpoint:   aliyunEndpoint,
		keyID:      cfg.AccessKeyID,
		keySecret:  cfg.AccessKeySecret,
		showNumber: cfg.ShowNumber,
		ttsCode:    cfg.TTSCode,
		region:     cfg.Region,
		now:        time.Now,
		nonce:      func() string { return uuid.New().String() },
	}, nil
}

type aliyunResponse struct {
	Code      string `json:"Code"`
	Message   string `json:"Message"`
	RequestID string `json:"RequestId"`
	CallID    string `json:"CallId"`
}

// Call implements Caller. The phone must be in normalized form; Aliyun
// wants the national number, so the region prefix is stripped.
func (c *AliyunCaller) Call(ctx context.Context, phone string, audio Audio) (CallResult, error) {
	national, ok := strings.CutPrefix(phone, roster.DefaultRegionPrefix)
	if !ok {
		return CallResult{}, errors.Wrapf(errors.ErrTerminal,
			"provider only dials %s numbers, got %s", roster.DefaultRegionPrefix, phone)
	}

	params := map[string]string{
		"AccessKeyId":      c.keyID,
		"Action":           aliyunAction,
		"CalledNumber":     national,
		"CalledShowNumber": c.showNumber,
		"Format":           "JSON",
		"RegionId":         c.region,
		"SignatureMethod":  "HMAC-SHA1",
		"SignatureNonce":   c.nonce(),
		"SignatureVersion": "1.0",
		"Timestamp":        c.now().UTC().Format("2006-01-02T15:04:05Z"),
		"TtsCode":          c.ttsCode,
		"Version":          aliyunAPIVersion,
	}
	if len(audio.Params) > 0 {
		ttsParam, err := json.Marshal(audio.Params)
		if err != nil {
			return CallResult{}, errors.Wrap(err, "marshal tts params")
		}
		params["TtsParam"] = string(ttsParam)
	}
	params["Signature"] = sign(http.MethodGet, params, c.keySecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"?"+encodeQuery(params), nil)
	if err != nil {
		return CallResult{}, errors.Wrap(err, "build provider request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return CallResult{}, errors.Wrap(errors.ErrTransient, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CallResult{}, errors.Wrap(errors.ErrTransient, err.Error())
	}

	var parsed aliyunResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return CallResult{}, errors.Wrapf(errors.ErrTransient,
			"unparseable provider response: %s", string(body))
	}

	if parsed.Code != "OK" {
		return CallResult{}, classifyProviderError(parsed)
	}

	logger.Infow("call initiated",
		"phone", phone, "call_id", parsed.CallID, "request_id", parsed.RequestID)
	return CallResult{CallID: parsed.CallID}, nil
}

// classifyProviderError maps Aliyun VMS result codes onto the retry
// taxonomy. Flow control carries a retry-after hint.
func classifyProviderError(resp aliyunResponse) error {
	base := errors.Newf("provider error %s: %s (request %s)",
		resp.Code, resp.Message, resp.RequestID)

	switch resp.Code {
	case "BUSINESS_LIMIT_CONTROL", "Throttling.User", "Throttling.Api":
		return errors.WithRetryAfter(errors.Wrap(errors.ErrTransient, base.Error()), rateLimitBackoff)
	case "SYSTEM_ERROR", "isp.SYSTEM-ERROR", "ServiceUnavailable", "InternalError":
		return errors.Wrap(errors.ErrTransient, base.Error())
	default:
		// Everything else (bad number, exhausted quota, invalid
		// credentials, template problems) will not heal on retry.
		return errors.Wrap(errors.ErrTerminal, base.Error())
	}
}

// sign computes the Aliyun RPC v1.0 request signature.
func sign(method string, params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonical strings.Builder
	for i, k := range keys {
		if i > 0 {
			canonical.WriteByte('&')
		}
		canonical.WriteString(percentEncode(k))
		canonical.WriteByte('=')
		canonical.WriteString(percentEncode(params[k]))
	}

	stringToSign := method + "&" + percentEncode("/") + "&" + percentEncode(canonical.String())
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode follows the provider's stricter variant of RFC 3986.
func percentEncode(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	encoded = strings.ReplaceAll(encoded, "%7E", "~")
	return encoded
}

func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var q strings.Builder
	for i, k := range keys {
		if i > 0 {
			q.WriteByte('&')
		}
		q.WriteString(percentEncode(k))
		q.WriteByte('=')
		q.WriteString(percentEncode(params[k]))
	}
	return q.String()
}
