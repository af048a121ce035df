package artifact

import "time"

// Kind represents the kind of catalogue item
type Kind string

const (
	KindAgent               Kind = "agent"
	KindPrompt              Kind = "prompt"
	KindInstruction         Kind = "instruction"
	KindAlwaysOnInstruction Kind = "always-on-instruction"
)

// Placement describes where items of one kind land inside the sandbox.
// Exactly one of Dir or FixedFile is set.
type Placement struct {
	Dir       string // directory relative to the sandbox root
	FixedFile string // single file relative to the sandbox root
	Suffix    string // required suffix of the source file name
}

// kindTable is the only place kinds are mapped to destinations.
// Adding a kind means adding a const above and a row here.
var kindTable = map[Kind]Placement{
	KindAgent:               {Dir: AgentsDirName, Suffix: AgentSuffix},
	KindPrompt:              {Dir: PromptsDirName, Suffix: PromptSuffix},
	KindInstruction:         {Dir: InstructionsDirName, Suffix: InstructionSuffix},
	KindAlwaysOnInstruction: {FixedFile: AlwaysOnFilename, Suffix: MarkdownSuffix},
}

// Kinds returns all known kinds in display order
func Kinds() []Kind {
	return []Kind{KindAgent, KindPrompt, KindInstruction, KindAlwaysOnInstruction}
}

// PlacementFor returns the placement for a kind
func PlacementFor(k Kind) (Placement, bool) {
	p, ok := kindTable[k]
	return p, ok
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// IndexSource identifies the repository an index was generated from
type IndexSource struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref,omitempty"`
}

// CatalogItem is one installable unit listed in the index
type CatalogItem struct {
	Kind        Kind     `json:"kind" validate:"required,artifactkind"`
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"dive,required"`
	TeamTags    []string `json:"teamTags,omitempty" validate:"dive,required"`
	Path        string   `json:"path" validate:"required"`
	Size        int64    `json:"size,omitempty" validate:"gte=0"`
	SHA256      string   `json:"sha256,omitempty" validate:"omitempty,hexadecimal,len=64"`
}

// IndexDocument is the remote catalogue
type IndexDocument struct {
	SchemaVersion int           `json:"schemaVersion"`
	Source        IndexSource   `json:"source"`
	GeneratedAt   time.Time     `json:"generatedAt,omitempty"`
	Items         []CatalogItem `json:"items"`
}

// InstalledEntry records one file written into the sandbox
type InstalledEntry struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Version     string    `json:"version,omitempty"`
	SourcePath  string    `json:"sourcePath"`
	DestPath    string    `json:"destPath"` // slash-separated, relative to the workspace root
	SHA256      string    `json:"sha256,omitempty"`
	InstalledAt time.Time `json:"installedAt,omitempty"`
}

// Receipt is the persisted manifest of what is installed in a sandbox
type Receipt struct {
	SchemaVersion int              `json:"schemaVersion"`
	Repo          string           `json:"repo"`
	Ref           string           `json:"ref"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Entries       []InstalledEntry `json:"entries"`
}

// FindByID returns the entries installed for a catalogue id
func (r *Receipt) FindByID(id string) []InstalledEntry {
	var out []InstalledEntry
	for _, e := range r.Entries {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}
