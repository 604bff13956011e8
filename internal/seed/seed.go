// Package seed writes a small demo catalog to start from.
package seed

import (
	"io"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	localio "github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/io/local"
)

var fieldOrder = []string{"nombre", "descripcion", "categoria", "material", "precio", "marca", "modelo", "color"}

var products = []map[string]string{
	{
		"nombre":      "Soporte elevador para monitor",
		"descripcion": "Soporte impreso en 3D para elevar el monitor, mejorar la postura y ganar espacio en el escritorio.",
		"categoria":   "Oficina",
		"material":    "PLA",
		"precio":      "12.90",
		"marca":       "PIERODEV",
		"modelo":      "MON-01",
		"color":       "negro",
	},
	{
		"nombre":      "Organizador de cables para escritorio",
		"descripcion": "Canaleta compacta para ordenar cables y reducir el desorden en la zona de trabajo.",
		"categoria":   "Oficina",
		"material":    "PETG",
		"precio":      "6.50",
		"marca":       "PIERODEV",
		"modelo":      "CAB-02",
		"color":       "blanco",
	},
	{
		"nombre":      "Soporte para auriculares de escritorio",
		"descripcion": "Base para mantener los auriculares siempre a mano y liberar espacio sobre la mesa.",
		"categoria":   "Gaming",
		"material":    "PLA",
		"precio":      "9.90",
		"marca":       "PIERODEV",
		"modelo":      "AUR-01",
		"color":       "gris",
	},
	{
		"nombre":      "Maceta geométrica decorativa",
		"descripcion": "Maceta moderna para interior, ideal para suculentas y decoración minimalista.",
		"categoria":   "Hogar",
		"material":    "PLA",
		"precio":      "8.90",
		"marca":       "PIERODEV",
		"modelo":      "MAC-03",
		"color":       "terracota",
	},
	{
		"nombre":      "Llaveros personalizados (pack)",
		"descripcion": "Pack de llaveros impresos en 3D personalizables con texto corto o iniciales.",
		"categoria":   "Personalizado",
		"material":    "PLA",
		"precio":      "7.90",
		"marca":       "PIERODEV",
		"modelo":      "KEY-10",
		"color":       "multicolor",
	},
	{
		"nombre":      "Soporte para mando de consola",
		"descripcion": "Base estable para apoyar el mando y mantener la zona gaming más ordenada.",
		"categoria":   "Gaming",
		"material":    "PETG",
		"precio":      "10.90",
		"marca":       "PIERODEV",
		"modelo":      "PAD-02",
		"color":       "negro",
	},
}

// Records returns the demo catalog. Each call builds fresh records.
func Records() []catalog.Record {
	out := make([]catalog.Record, 0, len(products))
	for _, p := range products {
		out = append(out, catalog.FromMap(p, fieldOrder...))
	}
	return out
}

// Write writes the demo catalog as XML and returns the number of records written.
func Write(w io.Writer) (int, error) {
	records := Records()
	if err := localio.WriteRecordsXML(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// WriteFile writes the demo catalog to path atomically.
func WriteFile(path string) (int, error) {
	n := 0
	err := localio.WriteFileAtomic(path, func(w io.Writer) error {
		var err error
		n, err = Write(w)
		return err
	})
	return n, err
}
