package device

import "github.com/tejusbharadwaj/wattwatch/internal/models"

// Wire names of writable channel and switch fields.
const (
	fieldLabel            = "label"
	fieldCtRating         = "ctRating"
	fieldCategoryID       = "categoryId"
	fieldCategoryLabel    = "categoryLabel"
	fieldState            = "state"
	fieldClosedStateLabel = "closedStateLabel"
	fieldOpenStateLabel   = "openStateLabel"
)

// Channel is a measurement channel owned by a Device. Its writes are tracked
// separately and sent with the owning device's commit.
type Channel struct {
	id  string
	rec record[models.ChannelInfo]
}

func newChannel(info models.ChannelInfo) *Channel {
	c := &Channel{id: info.ID}
	c.rec.assign = assignChannel
	// The API derives the label from categoryId and rejects it on write.
	c.rec.generated = map[string]bool{fieldCategoryLabel: true}
	c.rec.info = info
	return c
}

func assignChannel(c *models.ChannelInfo, name string, v any) {
	switch name {
	case fieldLabel:
		c.Label = v.(string)
	case fieldCtRating:
		c.CtRating = v.(int)
	case fieldCategoryID:
		c.CategoryID = v.(int)
	}
}

func (c *Channel) ID() string { return c.id }

func (c *Channel) Label() string         { return c.rec.get().Label }
func (c *Channel) CtRating() int         { return c.rec.get().CtRating }
func (c *Channel) CategoryID() int       { return c.rec.get().CategoryID }
func (c *Channel) CategoryLabel() string { return c.rec.get().CategoryLabel }

// Info returns a copy of the channel's current values.
func (c *Channel) Info() models.ChannelInfo { return c.rec.get() }

func (c *Channel) SetLabel(label string)  { c.rec.set(fieldLabel, label) }
func (c *Channel) SetCtRating(rating int) { c.rec.set(fieldCtRating, rating) }
func (c *Channel) SetCategoryID(id int)   { c.rec.set(fieldCategoryID, id) }

// Dirty reports whether the channel has uncommitted writes.
func (c *Channel) Dirty() bool { return c.rec.dirty() }

// Switch is a relay output owned by a Device.
type Switch struct {
	id  string
	rec record[models.SwitchInfo]
}

func newSwitch(info models.SwitchInfo) *Switch {
	s := &Switch{id: info.ID}
	s.rec.assign = assignSwitch
	s.rec.info = info
	return s
}

func assignSwitch(s *models.SwitchInfo, name string, v any) {
	switch name {
	case fieldLabel:
		s.Label = v.(string)
	case fieldState:
		s.State = v.(string)
	case fieldClosedStateLabel:
		s.ClosedStateLabel = v.(string)
	case fieldOpenStateLabel:
		s.OpenStateLabel = v.(string)
	}
}

func (s *Switch) ID() string { return s.id }

func (s *Switch) Label() string            { return s.rec.get().Label }
func (s *Switch) State() string            { return s.rec.get().State }
func (s *Switch) ContactorType() string    { return s.rec.get().ContactorType }
func (s *Switch) ClosedStateLabel() string { return s.rec.get().ClosedStateLabel }
func (s *Switch) OpenStateLabel() string   { return s.rec.get().OpenStateLabel }

func (s *Switch) Info() models.SwitchInfo { return s.rec.get() }

func (s *Switch) SetLabel(label string) { s.rec.set(fieldLabel, label) }

// SetState requests the switch be driven "open" or "closed".
func (s *Switch) SetState(state string)            { s.rec.set(fieldState, state) }
func (s *Switch) SetClosedStateLabel(label string) { s.rec.set(fieldClosedStateLabel, label) }
func (s *Switch) SetOpenStateLabel(label string)   { s.rec.set(fieldOpenStateLabel, label) }

func (s *Switch) Dirty() bool { return s.rec.dirty() }

// mergeChannels matches remote channels to existing ones by id so pending
// writes survive materialization.
func mergeChannels(existing []*Channel, remote []models.ChannelInfo) []*Channel {
	byID := make(map[string]*Channel, len(existing))
	for _, c := range existing {
		byID[c.id] = c
	}
	out := make([]*Channel, 0, len(remote))
	for _, info := range remote {
		if c, ok := byID[info.ID]; ok {
			c.rec.merge(info)
			out = append(out, c)
			continue
		}
		out = append(out, newChannel(info))
	}
	return out
}

func mergeSwitches(existing []*Switch, remote []models.SwitchInfo) []*Switch {
	byID := make(map[string]*Switch, len(existing))
	for _, s := range existing {
		byID[s.id] = s
	}
	out := make([]*Switch, 0, len(remote))
	for _, info := range remote {
		if s, ok := byID[info.ID]; ok {
			s.rec.merge(info)
			out = append(out, s)
			continue
		}
		out = append(out, newSwitch(info))
	}
	return out
}
