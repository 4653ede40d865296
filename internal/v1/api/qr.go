package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

// qrSize is mobile-friendly, matching Seednode-partybox's qrHandler.
const qrSize = 320

// roomQR handles GET /rooms/{pin}/qr (D4, supplemented): a PNG QR code
// encoding the room's join URL. Purely additive; any live pin qualifies,
// no session required.
func (h *Handlers) roomQR(c *gin.Context) {
	pin := c.Param("pin")
	if !h.engine.CheckPin(pin) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	png, err := qrcode.Encode(h.joinURL(c, pin), qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
