package listctl

import "strconv"

// Messages are the toast texts of one list. Empty fields take defaults built
// from Noun and Plural.
type Messages struct {
	Noun   string // default "item"
	Plural string // default Noun + "s"

	LoadFailed   string
	Added        string
	AddFailed    string
	Saved        string
	SaveFailed   string
	Unchanged    string
	Deleted      string
	DeleteFailed string
	BulkDeleted  string
	BulkFailed   string

	DownloadFailed string
}

func (m Messages) withDefaults() Messages {
	if m.Noun == "" {
		m.Noun = "item"
	}
	if m.Plural == "" {
		m.Plural = m.Noun + "s"
	}
	set := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	set(&m.LoadFailed, "Error loading "+m.Plural)
	set(&m.Added, "Created successfully")
	set(&m.AddFailed, "Error creating "+m.Noun)
	set(&m.Saved, "Changes saved successfully")
	set(&m.SaveFailed, "Error saving changes")
	set(&m.Unchanged, "No changes were made")
	set(&m.Deleted, "Deleted successfully")
	set(&m.DeleteFailed, "Error deleting "+m.Noun)
	set(&m.BulkDeleted, "Deleted successfully")
	set(&m.BulkFailed, "Error deleting "+m.Plural)
	set(&m.DownloadFailed, "Error downloading "+m.Noun)
	return m
}

func (m Messages) count(n int) string {
	if n == 1 {
		return "1 " + m.Noun
	}
	return strconv.Itoa(n) + " " + m.Plural
}

func (m Messages) deleted(n int) string { return m.count(n) + " deleted" }

func (m Messages) notDeleted(n int) string { return m.count(n) + " could not be deleted" }
