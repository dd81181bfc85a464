package source

import (
	"encoding/json"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Decode reads a JSON document of the form {"events": [...], "layers":
// {...}}. Records that fail validation are kept and logged; the normalizer
// decides how to treat them.
func Decode(r io.Reader, sourceName string) (Batch, error) {
	var b Batch
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("decode %s: %w", sourceName, err)
	}
	if b.Events == nil {
		b.Events = []model.RawEvent{}
	}
	if b.Layers == nil {
		b.Layers = model.LayerMap{}
	}
	// Layer ids are the map keys; entries often omit the id field.
	for id, l := range b.Layers {
		if l.ID == "" {
			l.ID = id
			b.Layers[id] = l
		}
	}

	for i, ev := range b.Events {
		if err := checkRecord(ev); err != nil {
			appLog.Warn("source record failed validation", "source", sourceName, "index", i, "id", string(ev.ID), "reason", err.Error())
		}
	}
	return b, nil
}

func checkRecord(ev model.RawEvent) error {
	return validation.ValidateStruct(&ev,
		validation.Field(&ev.StartTime, validation.Required),
		validation.Field(&ev.LayerID, validation.Required),
	)
}
