package menu

import "github.com/church-dashboard/church-dashboard/internal/auth"

// DefaultMenu is the built-in dashboard navigation tree. Its access requirements
// mirror auth.DefaultRules. A child is only reachable through its parent, so a child
// never asks for less than the parent does.
func DefaultMenu() []Item {
	everyone := []string{auth.Wildcard}
	return []Item{
		{Title: "Beranda", Description: "Ringkasan kegiatan gereja", Route: "/dashboard", Icon: "home", AllowedRoles: everyone},
		{Title: "Profil Saya", Description: "Data diri dan peran pelayanan", Route: "/dashboard/profil", Icon: "user", AllowedRoles: everyone},
		{Title: "Data Jemaat", Description: "Daftar dan detail anggota jemaat", Route: "/dashboard/jemaat", Icon: "users", AllowedRoles: []string{"sekretariat", "gembala"}},
		{Title: "Kehadiran", Description: "Pencatatan kehadiran ibadah", Route: "/dashboard/kehadiran", Icon: "check-square", AllowedRoles: []string{"sekretariat", "usher"}, RequiresPIC: true},
		{Title: "Komsel", Description: "Komunitas sel dan anggotanya", Route: "/dashboard/komsel", Icon: "share-2", AllowedRoles: []string{"komsel", "gembala"}},
		{Title: "Jadwal Pelayanan", Description: "Jadwal petugas ibadah", Route: "/dashboard/pelayanan/jadwal", Icon: "calendar", AllowedRoles: everyone},
		{
			Title: "Pelayanan", Description: "Pengelolaan tim pelayanan", Route: "/dashboard/pelayanan", Icon: "layers",
			AllowedRoles: []string{"musik", "multimedia", "usher"}, RequiresPIC: true,
			Children: []Item{
				{Title: "Tim Pelayanan", Description: "Anggota dan penugasan tim", Route: "/dashboard/pelayanan/tim", AllowedRoles: []string{"musik", "multimedia", "usher"}, RequiresPIC: true},
			},
		},
		{Title: "Daftar Lagu", Description: "Repertoar lagu ibadah", Route: "/dashboard/lagu", Icon: "music", AllowedRoles: []string{"musik"}},
		{Title: "Acara", Description: "Kegiatan dan acara gereja", Route: "/dashboard/acara", Icon: "flag", AllowedRoles: everyone},
		{Title: "Insight", Description: "Analisis pertumbuhan jemaat", Route: "/dashboard/insight", Icon: "bar-chart-2", AllowedRoles: []string{"gembala"}},
		{Title: "Manajemen Role", Description: "Pengaturan peran dan PIC", Route: "/dashboard/role", Icon: "shield", AllowedRoles: []string{auth.AdminRole}},
	}
}

// DefaultCategories groups the default menu. The last category catches everything else.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Jemaat", Match: []string{"/jemaat", "/kehadiran", "/komsel"}},
		{Name: "Pelayanan", Match: []string{"/pelayanan", "/lagu"}},
		{Name: "Kegiatan", Match: []string{"/acara", "/insight"}},
		{Name: "Administrasi", Match: []string{"/role"}},
		{Name: "Umum"},
	}
}
