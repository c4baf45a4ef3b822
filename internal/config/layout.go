package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SteamVC/OfficeHours_Town/internal/area"
)

//go:embed default_town.yaml
var defaultLayout []byte

// ErrInvalidLayout はレイアウトの検証エラーです
var ErrInvalidLayout = errors.New("invalid town layout")

// Point は座標です
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// AreaLayout はエリア共通の配置情報です
type AreaLayout struct {
	ID  string           `yaml:"id"`
	Box area.BoundingBox `yaml:",inline"`
}

// OfficeHoursLayout はオフィスアワーエリアの配置と初期設定です
type OfficeHoursLayout struct {
	AreaLayout    `yaml:",inline"`
	QuestionTypes []string       `yaml:"questionTypes"`
	Priorities    map[string]int `yaml:"priorities"`
}

// BreakoutRoomLayout はブレイクアウトルームの配置と紐づくオフィスアワーです
type BreakoutRoomLayout struct {
	AreaLayout  `yaml:",inline"`
	OfficeHours string `yaml:"officeHours"`
}

// Layout はタウン内のエリア配置です
type Layout struct {
	Spawn             Point                `yaml:"spawn"`
	ConversationAreas []AreaLayout         `yaml:"conversationAreas"`
	OfficeHours       []OfficeHoursLayout  `yaml:"officeHours"`
	BreakoutRooms     []BreakoutRoomLayout `yaml:"breakoutRooms"`
}

// LoadLayout はファイルからレイアウトを読み込みます。path が空なら組み込みのレイアウトを使います
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return ParseLayout(defaultLayout)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout %s: %w", path, err)
	}
	return ParseLayout(data)
}

// DefaultLayout は組み込みのレイアウトを返します
func DefaultLayout() Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseLayout はYAMLをパースして検証します。未知のキーはエラーになります
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate はIDの重複、サイズ、エリア同士の重なり、ブレイクアウトルームの紐づけ先を検証します
func (l Layout) Validate() error {
	all := l.areas()
	for i, a := range all {
		if a.ID == "" {
			return fmt.Errorf("%w: area without id", ErrInvalidLayout)
		}
		if a.Box.Width <= 0 || a.Box.Height <= 0 {
			return fmt.Errorf("%w: area %s has empty bounds", ErrInvalidLayout, a.ID)
		}
		for _, b := range all[:i] {
			if a.ID == b.ID {
				return fmt.Errorf("%w: duplicate area id %s", ErrInvalidLayout, a.ID)
			}
			if a.Box.Overlaps(b.Box) {
				return fmt.Errorf("%w: areas %s and %s overlap", ErrInvalidLayout, b.ID, a.ID)
			}
		}
	}

	officeHours := make(map[string]bool, len(l.OfficeHours))
	for _, oh := range l.OfficeHours {
		officeHours[oh.ID] = true
	}
	for _, br := range l.BreakoutRooms {
		if !officeHours[br.OfficeHours] {
			return fmt.Errorf("%w: breakout room %s links to unknown office hours %q", ErrInvalidLayout, br.ID, br.OfficeHours)
		}
	}
	return nil
}

func (l Layout) areas() []AreaLayout {
	out := make([]AreaLayout, 0, len(l.ConversationAreas)+len(l.OfficeHours)+len(l.BreakoutRooms))
	out = append(out, l.ConversationAreas...)
	for _, oh := range l.OfficeHours {
		out = append(out, oh.AreaLayout)
	}
	for _, br := range l.BreakoutRooms {
		out = append(out, br.AreaLayout)
	}
	return out
}
