package models

// BOM record metadata constants, kept stable so downstream viewers can
// identify the producer.
const (
	BOMType      = "STEP_Assembly_BOM"
	BOMGenerator = "step-visualizer"
	BOMVersion   = "2.2"
)

// BOMDocument is the serialized bill-of-materials record for one CAD file.
type BOMDocument struct {
	Filename        string       `json:"filename"`
	FullPath        string       `json:"full_path"`
	Timestamp       string       `json:"timestamp"` // ISO-8601
	TotalParts      int          `json:"total_parts"`
	TotalAssemblies int          `json:"total_assemblies"`
	AssemblyTree    AssemblyTree `json:"assembly_tree"`
	BOMType         string       `json:"bom_type"`
	GeneratedBy     string       `json:"generated_by"`
	Version         string       `json:"version"`
}

// PartEntry is one row of a flat parts list with its full assembly path.
type PartEntry struct {
	Name      string    `json:"name"`
	ID        uint      `json:"id"`
	Path      string    `json:"path"`
	Color     *RGBColor `json:"color"`
	ShapeKind string    `json:"shape_type"`
}
