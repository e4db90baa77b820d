package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/planner/core/events"
	coremon "github.com/kilianp07/planner/core/monitoring"
	coremqtt "github.com/kilianp07/planner/core/mqtt"
	"github.com/kilianp07/planner/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults fills the prefix, retries and backoff.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "planner"
	}
	if c.ClientID == "" {
		c.ClientID = "planner-" + strconv.Itoa(os.Getpid())
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// RunTopic is where status transitions of the organization's runs go.
func (c Config) RunTopic(orgID int64) string {
	return fmt.Sprintf("%s/%d/runs", strings.TrimSuffix(c.TopicPrefix, "/"), orgID)
}

// ApplyTopic is where reconciliations of the organization's runs go.
func (c Config) ApplyTopic(orgID int64) string {
	return fmt.Sprintf("%s/%d/applies", strings.TrimSuffix(c.TopicPrefix, "/"), orgID)
}

// CancelTopic receives {"run_id": "..."} requests.
func (c Config) CancelTopic() string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/cancel"
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoNotifier publishes run notifications through Eclipse Paho and listens
// for cancel requests.
type PahoNotifier struct {
	cli     pahoClient
	cfg     Config
	logger  logger.Logger
	backoff time.Duration

	mu     sync.Mutex
	cancel coremqtt.CancelFunc
}

// NewPahoNotifier connects to the broker.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_notifier")
	n := &PahoNotifier{cfg: cfg, logger: log, backoff: time.Duration(cfg.BackoffMS) * time.Millisecond}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.CancelTopic(), cfg.QoS, n.onCancel); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	n.cli = c
	return n, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// SetCancelHandler installs the function called for cancel requests.
func (n *PahoNotifier) SetCancelHandler(f coremqtt.CancelFunc) {
	n.mu.Lock()
	n.cancel = f
	n.mu.Unlock()
}

func (n *PahoNotifier) onCancel(_ paho.Client, msg paho.Message) {
	var m struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil || m.RunID == "" {
		n.logger.Warnf("ignoring cancel request %q", msg.Payload())
		return
	}
	n.mu.Lock()
	f := n.cancel
	n.mu.Unlock()
	if f == nil {
		n.logger.Warnf("cancel of run %s requested but no handler is installed", m.RunID)
		return
	}
	if err := f(m.RunID); err != nil {
		n.logger.Errorf("cancel run %s: %v", m.RunID, err)
		return
	}
	n.logger.Infof("cancelled run %s on request", m.RunID)
}

// NotifyRun publishes the event as JSON on the organization's run topic.
func (n *PahoNotifier) NotifyRun(ev events.RunEvent) error {
	return n.publish(n.cfg.RunTopic(ev.OrganizationID), ev, coremon.RunTags("mqtt", ev.OrganizationID, ev.RunID))
}

// NotifyApply publishes the event as JSON on the organization's apply topic.
func (n *PahoNotifier) NotifyApply(ev events.ApplyEvent) error {
	return n.publish(n.cfg.ApplyTopic(ev.OrganizationID), ev, coremon.RunTags("mqtt", ev.OrganizationID, ev.RunID))
}

func (n *PahoNotifier) publish(topic string, v any, tags map[string]string) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		token := n.cli.Publish(topic, n.cfg.QoS, n.cfg.Retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			n.logger.Debugf("published %s", topic)
			return nil
		}
		n.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < n.cfg.MaxRetries {
			time.Sleep(n.backoff * time.Duration(1<<attempt))
		}
	}
	err = fmt.Errorf("%w: %s: %w", coremqtt.ErrPublishFailed, topic, publishErr)
	coremon.CaptureException(err, tags)
	return err
}

// Disconnect gracefully closes the MQTT connection.
func (n *PahoNotifier) Disconnect() {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}

var _ coremqtt.Notifier = (*PahoNotifier)(nil)
