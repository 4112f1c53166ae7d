package streaming

import "net/http"

func (s *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
	<title>Camera Color Judge</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; background: #222; color: #eee; }
		canvas { display: block; cursor: crosshair; background: #000; }
		.bar { display: flex; gap: 16px; align-items: center; padding: 10px 0; font-family: monospace; }
		button { padding: 6px 18px; }
	</style>
</head>
<body>
	<h1>Camera Color Judge</h1>
	<div class="bar">
		<span id="pos">X: 0 Y: 0</span>
		<span id="rgb">R: 0 G: 0 B: 0</span>
		<span id="label">Unknown</span>
	</div>
	<canvas id="view" width="640" height="480"></canvas>
	<div class="bar">
		<button id="toggle">Connect</button>
		<button id="snapshot">Snapshot</button>
		<span id="state">Disconnected</span>
		<span id="reply"></span>
	</div>
	<script>
		const canvas = document.getElementById('view');
		const ctx = canvas.getContext('2d');
		const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
		ws.binaryType = 'blob';
		let overlay = null;
		let frame = null;

		const rgb = c => 'rgb(' + c.r + ',' + c.g + ',' + c.b + ')';

		function draw() {
			if (frame) {
				ctx.drawImage(frame, 0, 0);
			} else {
				ctx.fillStyle = '#000';
				ctx.fillRect(0, 0, canvas.width, canvas.height);
			}
			if (!overlay) return;
			ctx.beginPath();
			ctx.arc(overlay.x, overlay.y, 10, 0, 2 * Math.PI);
			ctx.fillStyle = rgb(overlay.color);
			ctx.fill();
			ctx.strokeStyle = rgb(overlay.text_color);
			ctx.stroke();
			ctx.font = '16px monospace';
			ctx.fillStyle = rgb(overlay.text_color);
			ctx.fillText(overlay.label, overlay.x + 14, overlay.y - 14);
		}

		ws.onmessage = ev => {
			if (typeof ev.data !== 'string') {
				createImageBitmap(ev.data).then(bitmap => {
					if (canvas.width !== bitmap.width) canvas.width = bitmap.width;
					if (canvas.height !== bitmap.height) canvas.height = bitmap.height;
					frame = bitmap;
					draw();
				});
				return;
			}
			const msg = JSON.parse(ev.data);
			if (msg.type === 'overlay') {
				overlay = msg;
				if (msg.state === 'Disconnected') frame = null;
				document.getElementById('pos').textContent = 'X: ' + msg.x + ' Y: ' + msg.y;
				document.getElementById('rgb').textContent = 'R: ' + msg.color.r + ' G: ' + msg.color.g + ' B: ' + msg.color.b;
				document.getElementById('label').textContent = msg.label;
				document.getElementById('state').textContent = msg.state;
				document.getElementById('toggle').textContent = msg.button;
				draw();
			} else if (msg.type === 'snapshot') {
				document.getElementById('reply').textContent = 'saved ' + msg.path;
			} else if (msg.type === 'error') {
				document.getElementById('reply').textContent = msg.error;
			}
		};

		const send = cmd => ws.readyState === WebSocket.OPEN && ws.send(JSON.stringify(cmd));

		canvas.addEventListener('mousemove', ev => {
			const rect = canvas.getBoundingClientRect();
			const x = Math.floor((ev.clientX - rect.left) * canvas.width / rect.width);
			const y = Math.floor((ev.clientY - rect.top) * canvas.height / rect.height);
			send({type: 'move', x: x, y: y});
		});
		document.getElementById('toggle').onclick = () => send({type: 'toggle'});
		document.getElementById('snapshot').onclick = () => send({type: 'snapshot'});
		document.addEventListener('keydown', ev => {
			if (ev.key === 's' || ev.key === 'S') send({type: 'snapshot'});
		});
	</script>
</body>
</html>
`
