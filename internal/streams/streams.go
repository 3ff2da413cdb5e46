package streams

import (
	"net/http"
	"sync"

	"github.com/espack/espack/internal/api"
	"github.com/espack/espack/internal/app"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Streams map[string]Config `yaml:"streams"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("streams")

	for name, conf := range cfg.Streams {
		stream, err := NewStream(name, conf)
		if err != nil {
			log.Error().Err(err).Str("stream", name).Msg("[streams] skip")
			continue
		}
		streams[name] = stream
	}

	api.HandleFunc("api/streams", apiStreams)
	api.SetStatsProvider(statsSnapshot)

	for _, stream := range streams {
		stream.Start()
	}
}

// Config is one entry of the yaml streams map. A plain string is
// shorthand for the source URL with a null sink.
type Config struct {
	Source string `yaml:"source"`
	Sink   string `yaml:"sink"`
	Queue  int    `yaml:"queue"`
}

func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	var url string
	if err := unmarshal(&url); err == nil {
		c.Source = url
		return nil
	}
	type raw Config
	return unmarshal((*raw)(c))
}

func Get(name string) *Stream {
	streamsMu.Lock()
	defer streamsMu.Unlock()
	return streams[name]
}

func Stop() {
	streamsMu.Lock()
	defer streamsMu.Unlock()
	for _, stream := range streams {
		stream.Stop()
	}
}

func statsSnapshot() []api.StreamStats {
	streamsMu.Lock()
	defer streamsMu.Unlock()

	stats := make([]api.StreamStats, 0, len(streams))
	for _, stream := range streams {
		stats = append(stats, stream.Stats())
	}
	return stats
}

func apiStreams(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("src"); name != "" {
		stream := Get(name)
		if stream == nil {
			http.Error(w, api.StreamNotFound, http.StatusNotFound)
			return
		}
		api.ResponseJSON(w, stream.MarshalInfo())
		return
	}

	streamsMu.Lock()
	info := make(map[string]any, len(streams))
	for name, stream := range streams {
		info[name] = stream.MarshalInfo()
	}
	streamsMu.Unlock()

	api.ResponseJSON(w, info)
}

var log zerolog.Logger
var streams = map[string]*Stream{}
var streamsMu sync.Mutex
