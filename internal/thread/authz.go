package thread

// AnonymousUserID is the sentinel for requests without a session. Fiber
// handlers leave the acting user at zero when no JWT was presented.
const AnonymousUserID uint = 0

// CanDelete decides whether actingUserID may remove a comment. A comment may
// be removed by its author or by the author of the post it belongs to
// (moderation right), and by nobody else. Anonymous viewers can never delete.
func CanDelete(actingUserID, commentOwnerID, postOwnerID uint) bool {
	if actingUserID == AnonymousUserID {
		return false
	}
	return actingUserID == commentOwnerID || actingUserID == postOwnerID
}
