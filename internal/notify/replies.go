package notify

// Replies holds the chat command responses of one locale.
type Replies struct {
	HelpCustomer        string
	HelpAdmin           string
	Usage               string
	UnknownCommand      string
	UnknownAdminCommand string
	MonthsNotNumber     string

	PackagesEmpty  string
	PackagesHeader string
	PackageLine    string
	PackagesFooter string

	NoOrders        string
	YourOrders      string
	CannotCancel    string
	CancelledBy     string
	OrderDetail     string
	OrderServer     string
	OrderNotes      string
	OrderCustomer   string
	OrderAdminNotes string
	OrderHistory    string
	ListMore        string

	Transitioned     string
	Rejected         string
	Provisioned      string
	Reused           string
	ServerSet        string
	AdminNoteSaved   string
	AdminNoteCleared string
	NoPending        string
	PendingList      string
	NoMatch          string
	Found            string
	Stats            string
	AutoProvisioning string
	PanelLine        string
	ConnectionOK     string
	ConnectionFailed string
	On, Off          string
	Yes, No          string
	NotBlocked       string
	Unblocked        string
	LimitSummary     string
	LimitSender      string
	LimitBlocked     string
	ServerActionDone string

	// Failures shown to the sender. InvalidInput, NotFound and
	// IllegalTransition are user-correctable; TryAgain covers transient
	// external failures and ContactSupport everything else.
	InvalidInput      string
	NotFound          map[string]string
	IllegalTransition string
	InProgress        string
	TryAgain          string
	ContactSupport    string
}

var englishReplies = Replies{
	HelpCustomer: `*Hosting bot*
packages - list hosting packages
order <package> <months> [notes] - place an order
status <order-id> - order status and history
myorders - your recent orders
cancel <order-id> - cancel a pending order`,
	HelpAdmin: `

*Admin*
confirm|process|refund <id> [note]
complete <id> [server-id]
reject <id> <reason>
provision <id> / retry <id>
setserver <id> <server-id>
note <id> <text>
pending / search <q> / stats
autoprov
unblock <sender> / limit [sender]
suspend|resume|restart <id>`,
	Usage:               "Usage: {usage}",
	UnknownCommand:      "Unknown command. Send *help* to see what I can do.",
	UnknownAdminCommand: "Unknown command. Send *help* for the admin menu.",
	MonthsNotNumber:     "Months must be a number between 1 and 12.",

	PackagesEmpty:  "No packages are available right now.",
	PackagesHeader: "*Packages* (price per month)\n",
	PackageLine:    "\n*{key}* - {name}\n{price} | RAM {ram} | CPU {cpu} | Disk {disk}\n",
	PackagesFooter: "\nOrder with: order <package> <months>",

	NoOrders:        "You have no orders yet. Send *packages* to get started.",
	YourOrders:      "Your orders:\n{list}",
	CannotCancel:    "Order {order_id} is {status} and can no longer be cancelled here. Please contact us.",
	CancelledBy:     "Cancelled by {actor}",
	OrderDetail:     "*Order {order_id}*\nPackage: {package} ({package_key})\nDuration: {duration} month(s)\nTotal: {total}\nStatus: {status}\n",
	OrderServer:     "Server: {server_id}\n",
	OrderNotes:      "Notes: {notes}\n",
	OrderCustomer:   "Customer: {name} ({phone})\n",
	OrderAdminNotes: "Admin notes: {notes}\n",
	OrderHistory:    "\nHistory:",
	ListMore:        "...and {count} more",

	Transitioned:     "Order {order_id}: {from} -> {to}",
	Rejected:         "Order {order_id} rejected: {reason}",
	Provisioned:      "Order {order_id} provisioned: server {server_id} ({elapsed}).",
	Reused:           "Order {order_id} completed with existing server {server_id}.",
	ServerSet:        "Order {order_id} now points at server {server_id}.",
	AdminNoteSaved:   "Admin note saved for {order_id}.",
	AdminNoteCleared: "Admin note cleared for {order_id}.",
	NoPending:        "No pending orders.",
	PendingList:      "Pending orders ({count}):\n{list}",
	NoMatch:          `No orders match "{query}".`,
	Found:            "Found {count} order(s):\n{list}",
	Stats: "*Order stats*\nTotal: {total} | Today: {today} | This month: {month}\n" +
		"Awaiting payment: {pending}\nRevenue: {revenue}\nAverage order: {average}\n",
	AutoProvisioning: "Auto-provisioning: {enabled}\nPanel configured: {configured}\n",
	PanelLine:        "Panel: {panel_url}\n",
	ConnectionOK:     "Connection: OK ({nodes} node(s))",
	ConnectionFailed: "Connection: FAILED ({error})",
	On:               "ON",
	Off:              "OFF",
	Yes:              "yes",
	No:               "no",
	NotBlocked:       "{sender} is not blocked.",
	Unblocked:        "{sender} has been unblocked.",
	LimitSummary:     "Tracked senders: {tracked}\nBlocked senders: {blocked}",
	LimitSender:      "{sender}: {count}/{limit} messages, {remaining} remaining, window resets in {resets}",
	LimitBlocked:     "\nBlocked for {blocked_for}",
	ServerActionDone: "Server of {order_id}: {action} done.",

	InvalidInput: "Invalid input: {message}",
	NotFound: map[string]string{
		"order":   "Order {id} was not found.",
		"package": "Package {id} was not found.",
		"":        "{kind} {id} was not found.",
	},
	IllegalTransition: "Order {order_id} is {from}; it cannot move to {to}.",
	InProgress:        "Provisioning for this order is already running.",
	TryAgain:          "Our hosting provider is not responding right now ({reason}). Please try again in a few minutes.",
	ContactSupport:    "Something went wrong on our side. Please contact support.",
}

var indonesianReplies = Replies{
	HelpCustomer: `*Bot hosting*
packages - daftar paket hosting
order <paket> <bulan> [catatan] - buat pesanan
status <id-pesanan> - status dan riwayat pesanan
myorders - pesanan terbaru kamu
cancel <id-pesanan> - batalkan pesanan yang belum dibayar`,
	HelpAdmin: `

*Admin*
confirm|process|refund <id> [catatan]
complete <id> [server-id]
reject <id> <alasan>
provision <id> / retry <id>
setserver <id> <server-id>
note <id> <teks>
pending / search <q> / stats
autoprov
unblock <pengirim> / limit [pengirim]
suspend|resume|restart <id>`,
	Usage:               "Format: {usage}",
	UnknownCommand:      "Perintah tidak dikenal. Kirim *help* untuk melihat menu.",
	UnknownAdminCommand: "Perintah tidak dikenal. Kirim *help* untuk menu admin.",
	MonthsNotNumber:     "Jumlah bulan harus angka antara 1 dan 12.",

	PackagesEmpty:  "Belum ada paket yang tersedia saat ini.",
	PackagesHeader: "*Paket* (harga per bulan)\n",
	PackageLine:    "\n*{key}* - {name}\n{price} | RAM {ram} | CPU {cpu} | Disk {disk}\n",
	PackagesFooter: "\nPesan dengan: order <paket> <bulan>",

	NoOrders:        "Kamu belum punya pesanan. Kirim *packages* untuk mulai.",
	YourOrders:      "Pesanan kamu:\n{list}",
	CannotCancel:    "Pesanan {order_id} berstatus {status} dan tidak bisa dibatalkan di sini. Silakan hubungi kami.",
	CancelledBy:     "Dibatalkan oleh {actor}",
	OrderDetail:     "*Pesanan {order_id}*\nPaket: {package} ({package_key})\nDurasi: {duration} bulan\nTotal: {total}\nStatus: {status}\n",
	OrderServer:     "Server: {server_id}\n",
	OrderNotes:      "Catatan: {notes}\n",
	OrderCustomer:   "Pelanggan: {name} ({phone})\n",
	OrderAdminNotes: "Catatan admin: {notes}\n",
	OrderHistory:    "\nRiwayat:",
	ListMore:        "...dan {count} lainnya",

	Transitioned:     "Pesanan {order_id}: {from} -> {to}",
	Rejected:         "Pesanan {order_id} ditolak: {reason}",
	Provisioned:      "Pesanan {order_id} sudah diprovision: server {server_id} ({elapsed}).",
	Reused:           "Pesanan {order_id} diselesaikan dengan server yang sudah ada {server_id}.",
	ServerSet:        "Pesanan {order_id} sekarang memakai server {server_id}.",
	AdminNoteSaved:   "Catatan admin untuk {order_id} disimpan.",
	AdminNoteCleared: "Catatan admin untuk {order_id} dihapus.",
	NoPending:        "Tidak ada pesanan yang menunggu.",
	PendingList:      "Pesanan menunggu ({count}):\n{list}",
	NoMatch:          `Tidak ada pesanan yang cocok dengan "{query}".`,
	Found:            "Ditemukan {count} pesanan:\n{list}",
	Stats: "*Statistik pesanan*\nTotal: {total} | Hari ini: {today} | Bulan ini: {month}\n" +
		"Menunggu pembayaran: {pending}\nPendapatan: {revenue}\nRata-rata pesanan: {average}\n",
	AutoProvisioning: "Auto-provisioning: {enabled}\nPanel terkonfigurasi: {configured}\n",
	PanelLine:        "Panel: {panel_url}\n",
	ConnectionOK:     "Koneksi: OK ({nodes} node)",
	ConnectionFailed: "Koneksi: GAGAL ({error})",
	On:               "AKTIF",
	Off:              "NONAKTIF",
	Yes:              "ya",
	No:               "tidak",
	NotBlocked:       "{sender} tidak sedang diblokir.",
	Unblocked:        "Blokir {sender} sudah dibuka.",
	LimitSummary:     "Pengirim terpantau: {tracked}\nPengirim diblokir: {blocked}",
	LimitSender:      "{sender}: {count}/{limit} pesan, sisa {remaining}, jendela direset dalam {resets}",
	LimitBlocked:     "\nDiblokir selama {blocked_for}",
	ServerActionDone: "Server {order_id}: {action} selesai.",

	InvalidInput: "Input tidak valid: {message}",
	NotFound: map[string]string{
		"order":   "Pesanan {id} tidak ditemukan.",
		"package": "Paket {id} tidak ditemukan.",
		"":        "{kind} {id} tidak ditemukan.",
	},
	IllegalTransition: "Pesanan {order_id} berstatus {from}; tidak bisa diubah ke {to}.",
	InProgress:        "Provisioning untuk pesanan ini sedang berjalan.",
	TryAgain:          "Penyedia hosting sedang tidak merespons ({reason}). Silakan coba lagi beberapa menit lagi.",
	ContactSupport:    "Terjadi kesalahan di sistem kami. Silakan hubungi support.",
}

// NotFoundText renders the not-found reply for an entity kind.
func (r Replies) NotFoundText(kind, id string) string {
	tmpl, ok := r.NotFound[kind]
	if !ok {
		tmpl = r.NotFound[""]
	}
	return Render(tmpl, map[string]string{"kind": kind, "id": id})
}
