// Package commands is the thin dispatch surface the UI calls into: it
// exactly mirrors the Catalogue and DeviceRegistry operations, wrapping
// each in a Result so every outcome is either a success marker or an
// error string, never a panic or a typed Go error crossing the boundary.
package commands

import (
	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/eventbus"
	"github.com/kstaniek/groundstation/internal/registry"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// Result is the uniform command outcome: OK with an optional value, or a
// failure carrying a display-ready error string.
type Result struct {
	OK    bool
	Value any
	Error string
}

func ok(v any) Result { return Result{OK: true, Value: v} }
func fail(err error) Result { return Result{OK: false, Error: err.Error()} }

// Server dispatches UI commands into a Catalogue and a Registry, emitting
// catalogue-update events for every format mutation.
type Server struct {
	cat *catalogue.Catalogue
	reg *registry.Registry
	bus *eventbus.Bus
}

func NewServer(cat *catalogue.Catalogue, reg *registry.Registry, bus *eventbus.Bus) *Server {
	return &Server{cat: cat, reg: reg, bus: bus}
}

func (s *Server) publishCatalogueChange(kind eventbus.CatalogueChangeKind, id uint64, name string) {
	s.bus.Publish(eventbus.Event{
		Topic:   eventbus.TopicCatalogueUpdate,
		Payload: eventbus.CatalogueChange{Kind: kind, FormatID: id, FormatName: name},
	})
}

// RegisterFormat mirrors Catalogue.Register.
func (s *Server) RegisterFormat(format catalogue.PacketFormat) Result {
	id, err := s.cat.Register(format)
	if err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatCreated, id, format.Name)
	return ok(id)
}

// GetFormat mirrors Catalogue.Get.
func (s *Server) GetFormat(id uint64) Result {
	f, err := s.cat.Get(id)
	if err != nil {
		return fail(err)
	}
	return ok(f)
}

// SetFormatName mirrors Catalogue.SetName.
func (s *Server) SetFormatName(id uint64, name string) Result {
	if err := s.cat.SetName(id, name); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, name)
	return ok(nil)
}

// SetFieldName mirrors Catalogue.SetFieldName.
func (s *Server) SetFieldName(id uint64, fieldIndex int, name string) Result {
	if err := s.cat.SetFieldName(id, fieldIndex, name); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// SetFieldType mirrors Catalogue.SetFieldType.
func (s *Server) SetFieldType(id uint64, fieldIndex int, newType catalogue.FieldType, strLen int) Result {
	if err := s.cat.SetFieldType(id, fieldIndex, newType, strLen); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// SetDelimiterName mirrors Catalogue.SetDelimiterName.
func (s *Server) SetDelimiterName(id uint64, delimIndex int, name string) Result {
	if err := s.cat.SetDelimiterName(id, delimIndex, name); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// SetDelimiterIdentifier mirrors Catalogue.SetDelimiterIdentifier.
func (s *Server) SetDelimiterIdentifier(id uint64, delimIndex int, hexIdentifier string) Result {
	if err := s.cat.SetDelimiterIdentifier(id, delimIndex, hexIdentifier); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// SetGapSize mirrors Catalogue.SetGapSize.
func (s *Server) SetGapSize(id uint64, gapStart, newSize int) Result {
	if err := s.cat.SetGapSize(id, gapStart, newSize); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// AddField mirrors Catalogue.AddField.
func (s *Server) AddField(id uint64) Result {
	idx, err := s.cat.AddField(id)
	if err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(idx)
}

// AddDelimiter mirrors Catalogue.AddDelimiter.
func (s *Server) AddDelimiter(id uint64) Result {
	idx, err := s.cat.AddDelimiter(id)
	if err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(idx)
}

// AddGapAfter mirrors Catalogue.AddGapAfter.
func (s *Server) AddGapAfter(id uint64, kind catalogue.ComponentKind, index, size int) Result {
	if err := s.cat.AddGapAfter(id, kind, index, size); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// DeleteComponent mirrors Catalogue.DeleteComponent.
func (s *Server) DeleteComponent(id uint64, index int, kind catalogue.ComponentKind) Result {
	if err := s.cat.DeleteComponent(id, index, kind); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatUpdated, id, "")
	return ok(nil)
}

// DeleteFormat mirrors Catalogue.DeleteFormat.
func (s *Server) DeleteFormat(id uint64) Result {
	if err := s.cat.DeleteFormat(id); err != nil {
		return fail(err)
	}
	s.publishCatalogueChange(eventbus.CatalogueFormatDeleted, id, "")
	return ok(nil)
}

// AddDevice mirrors DeviceRegistry.Add.
func (s *Server) AddDevice(kind adapters.Kind, clock telemetry.Clock) Result {
	id, err := s.reg.Add(kind, s.cat, clock)
	if err != nil {
		return fail(err)
	}
	return ok(id)
}

// InitDevice mirrors DeviceRegistry.Init.
func (s *Server) InitDevice(id uint64, endpoint string, baud int) Result {
	if err := s.reg.Init(id, endpoint, baud); err != nil {
		return fail(err)
	}
	return ok(nil)
}

// RemoveDevice mirrors DeviceRegistry.Remove.
func (s *Server) RemoveDevice(id uint64) Result {
	if err := s.reg.Remove(id); err != nil {
		return fail(err)
	}
	return ok(nil)
}

// ListDevices mirrors DeviceRegistry.Devices.
func (s *Server) ListDevices() Result {
	return ok(s.reg.Devices())
}
