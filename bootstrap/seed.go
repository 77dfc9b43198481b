// Package bootstrap seeds first-run data for the default brand.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brandchat-io/brandchat/datatypes"
)

// Catalog is the product store surface needed for seeding. Satisfied by
// *catalog.Store.
type Catalog interface {
	List(ctx context.Context, brandID, category string) ([]datatypes.Product, error)
	Create(ctx context.Context, brandID string, req *datatypes.ProductCreateRequest) (*datatypes.Product, error)
}

func boolPtr(b bool) *bool { return &b }

// sampleProducts is the demo catalog for the default brand: Indonesian
// retail listings priced in Rupiah.
var sampleProducts = []datatypes.ProductCreateRequest{
	{
		Name:        "MacBook Pro 14-inch M3 Pro",
		Description: "Laptop premium yang dirancang untuk profesional, pekerjaan kreatif, dan aplikasi bisnis. Sempurna untuk editing video, pengembangan software, dan tugas bisnis yang menuntut performa tinggi.",
		Category:    "Laptop",
		Price:       30999000.00,
		Features: []string{
			"Chip M3 Pro dengan CPU 12-core",
			"Layar Liquid Retina XDR 14-inch",
			"Memori unified 18GB",
			"Penyimpanan SSD 512GB",
			"Baterai hingga 18 jam",
			"Port Thunderbolt 4",
			"Kamera FaceTime HD 1080p",
			"Sistem suara enam speaker",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "Dell XPS 13 Plus",
		Description: "Laptop bisnis ultra-portabel dengan desain premium dan performa tinggi. Ideal untuk profesional bisnis, konsultan, dan eksekutif yang membutuhkan mobilitas tanpa mengorbankan kekuatan.",
		Category:    "Laptop",
		Price:       19999000.00,
		Features: []string{
			"Prosesor Intel Core i7 Generasi ke-12",
			"Layar sentuh OLED 4K 13.4-inch",
			"RAM LPDDR5 16GB",
			"SSD PCIe 512GB",
			"Grafis Intel Iris Xe",
			"Konstruksi aluminium premium",
			"Keyboard backlit",
			"Windows 11 Pro",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "ThinkPad X1 Carbon Gen 11",
		Description: "Laptop bisnis legendaris yang dipercaya oleh perusahaan di seluruh dunia. Dibangun untuk eksekutif, konsultan, dan profesional bisnis yang menuntut keandalan, keamanan, dan performa.",
		Category:    "Laptop",
		Price:       26499000.00,
		Features: []string{
			"Intel Core i7 vPro Generasi ke-13",
			"Layar OLED 2.8K 14-inch",
			"RAM LPDDR5 32GB",
			"SSD PCIe 1TB",
			"Grafis Intel Iris Xe",
			"Konstruksi serat karbon",
			"Pembaca sidik jari",
			"Kamera IR dengan Windows Hello",
			"Daya tahan tingkat militer",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "MacBook Air 15-inch M3",
		Description: "Laptop tipis, ringan, dan bertenaga sempurna untuk mahasiswa, profesional kreatif, dan pengguna bisnis yang membutuhkan portabilitas. Sangat baik untuk tugas bisnis sehari-hari dan pekerjaan kreatif.",
		Category:    "Laptop",
		Price:       20299000.00,
		Features: []string{
			"Chip M3 dengan CPU 8-core",
			"Layar Liquid Retina 15.3-inch",
			"Memori unified 16GB",
			"Penyimpanan SSD 512GB",
			"Baterai hingga 18 jam",
			"Kamera FaceTime HD 1080p",
			"Sistem suara empat speaker",
			"Desain tanpa kipas",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "HP Spectre x360 14",
		Description: "Laptop 2-in-1 serbaguna yang dapat berubah menjadi tablet. Sempurna untuk presentasi bisnis, pekerjaan kreatif, dan profesional yang membutuhkan fleksibilitas dalam alur kerja mereka.",
		Category:    "Laptop",
		Price:       18699000.00,
		Features: []string{
			"Intel Core i7 Generasi ke-12",
			"Layar sentuh OLED 3K2K 13.5-inch",
			"RAM LPDDR4x 16GB",
			"SSD PCIe 1TB",
			"Grafis Intel Iris Xe",
			"Desain engsel 360 derajat",
			"HP Rechargeable MPP2.0 Tilt Pen termasuk",
			"Speaker Bang & Olufsen",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "ASUS ROG Strix G16",
		Description: "Laptop gaming performa tinggi yang juga cocok untuk pembuatan konten, pemodelan 3D, dan aplikasi bisnis yang menuntut seperti analisis data dan software engineering.",
		Category:    "Laptop",
		Price:       24999000.00,
		Features: []string{
			"Intel Core i7-13650HX Generasi ke-13",
			"Layar QHD 165Hz 16-inch",
			"RAM DDR5 16GB",
			"SSD PCIe 1TB",
			"NVIDIA GeForce RTX 4060",
			"Keyboard RGB backlit",
			"Sistem pendingin canggih",
			"Konektivitas Wi-Fi 6E",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "iPhone 15 Pro",
		Description: "iPhone terbaru dengan desain titanium dan sistem kamera canggih. Sempurna untuk profesional bisnis yang membutuhkan komunikasi andal dan alat produktivitas.",
		Category:    "Smartphone",
		Price:       15499000.00,
		Features: []string{
			"Desain titanium",
			"Chip A17 Pro",
			"Sistem kamera Pro",
			"Tombol Action",
			"USB-C",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "Dell UltraSharp 32 4K Monitor",
		Description: "Monitor 4K profesional sempurna untuk presentasi bisnis, pekerjaan desain, dan produktivitas. Pendamping ideal untuk laptop di lingkungan kantor.",
		Category:    "Monitor",
		Price:       11699000.00,
		Features: []string{
			"Layar IPS 4K 32-inch",
			"Cakupan 99% sRGB",
			"Fungsi hub USB-C",
			"Stand dapat disesuaikan tingginya",
			"Kompatibel mount VESA",
			"Pengurangan cahaya biru",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "Logitech MX Master 3S Business",
		Description: "Mouse nirkabel profesional yang dirancang untuk produktivitas bisnis dan pekerjaan presisi. Pendamping sempurna untuk laptop dan setup desktop.",
		Category:    "Aksesoris",
		Price:       1549000.00,
		Features: []string{
			"Scroll elektromagnetik MagSpeed",
			"Sensor Darkfield 8000 DPI",
			"Konektivitas multi-device",
			"Pengisian cepat USB-C",
			"Teknologi klik senyap",
			"Tombol yang dapat dikustomisasi",
		},
		IsAvailable: boolPtr(true),
	},
	{
		Name:        "Apple Magic Keyboard dengan Touch ID",
		Description: "Keyboard nirkabel yang dirancang untuk pengguna Mac, sempurna untuk profesional bisnis yang menggunakan setup MacBook atau iMac.",
		Category:    "Aksesoris",
		Price:       3099000.00,
		Features: []string{
			"Touch ID untuk autentikasi aman",
			"Mekanisme scissor profil rendah",
			"Pengisian konektor Lightning",
			"Konektivitas Bluetooth nirkabel",
			"Keypad numerik termasuk",
			"Baterai dapat diisi ulang",
		},
		IsAvailable: boolPtr(true),
	},
}

// SeedSampleData loads the demo catalog into a brand if it is empty.
//
// # Description
//
// Intended for first-run developer setups, gated behind SEED_SAMPLE_DATA.
// Seeding is idempotent: if the brand already has any products, nothing is
// written. Individual create failures are logged and skipped so a partial
// Weaviate outage does not abort startup.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - store: The product catalog.
//   - brandID: The brand to seed, normally the default brand.
//
// # Outputs
//
//   - int: Number of products created.
//   - error: Non-nil if the existing catalog could not be read.
func SeedSampleData(ctx context.Context, store Catalog, brandID string) (int, error) {
	existing, err := store.List(ctx, brandID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to check existing catalog: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("Sample data seeding skipped, catalog not empty", "brandId", brandID, "products", len(existing))
		return 0, nil
	}

	created := 0
	for i := range sampleProducts {
		req := sampleProducts[i]
		if _, err := store.Create(ctx, brandID, &req); err != nil {
			slog.Error("Failed to seed product", "brandId", brandID, "name", req.Name, "error", err)
			continue
		}
		created++
	}

	slog.Info("Sample data seeding completed", "brandId", brandID, "created", created, "total", len(sampleProducts))
	return created, nil
}
