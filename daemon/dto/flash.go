package dto

// FileEntry is the API-facing view of a flash FAT slot: a live file's name,
// size, and sector span. Tombstones and in-progress-hidden slots never
// appear here.
type FileEntry struct {
	Filename    string `json:"filename"`
	StartSector uint16 `json:"startSector"`
	SectorCount uint16 `json:"sectorCount"`
	FileSize    uint32 `json:"fileSize"`
}

// FlashInfo summarizes the flash filesystem for GET /flash/info and the
// Monitor task's periodic TopicFlashInfo publish.
type FlashInfo struct {
	TotalSectors   int         `json:"totalSectors"`
	FreeSectors    int         `json:"freeSectors"`
	LiveEntryCount int         `json:"liveEntryCount"`
	PrimaryFATOK   bool        `json:"primaryFatOk"`
	UsedShadowFAT  bool        `json:"usedShadowFat"`
	Files          []FileEntry `json:"files,omitempty"`
}
