package main

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AI Speech Generator</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
textarea { width: 100%; height: 6rem; }
#transcript { white-space: pre-wrap; border: 1px solid #ccc; padding: 1rem; min-height: 4rem; margin-top: 1rem; }
#status { color: #666; }
#status.error { color: #b00020; }
</style>
</head>
<body>
<h1>&#127908; AI Speech Generator</h1>
<p>Enter your prompt below and the model will generate a spoken response.</p>
<form id="form">
<label>Model:
<select id="model">
{{range .Models}}<option value="{{.ID}}">{{.Name}}</option>
{{end}}</select>
</label>
<textarea id="prompt" placeholder="e.g., Please explain quantum computing in simple terms."></textarea>
<button type="submit">Generate Response</button>
</form>
<p id="status"></p>
<div id="transcript"></div>
<div id="player"></div>
<script>
const form = document.getElementById('form');
const status = document.getElementById('status');
const transcript = document.getElementById('transcript');
const player = document.getElementById('player');
let sock = null;

form.addEventListener('submit', (e) => {
	e.preventDefault();
	if (sock) sock.close();
	transcript.textContent = '';
	player.innerHTML = '';
	status.className = '';
	status.textContent = 'Generating response...';

	const prompt = document.getElementById('prompt').value;
	if (!prompt.trim()) { status.textContent = 'Please enter a prompt.'; return; }
	const model = document.getElementById('model').value;
	const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
	const url = proto + '//' + location.host + '/ws/generate?model=' +
		encodeURIComponent(model) + '&prompt=' + encodeURIComponent(prompt);

	sock = new WebSocket(url);
	sock.onmessage = (msg) => {
		const f = JSON.parse(msg.data);
		switch (f.type) {
		case 'transcript.delta':
			transcript.textContent += f.text;
			break;
		case 'audio': {
			const bytes = Uint8Array.from(atob(f.wav), c => c.charCodeAt(0));
			const blob = new Blob([bytes], {type: 'audio/wav'});
			const href = URL.createObjectURL(blob);
			player.innerHTML = '<h2>Audio Response</h2>' +
				'<audio controls src="' + href + '"></audio> ' +
				'<a download="ai_response.wav" href="' + href + '">Download Audio</a>';
			break;
		}
		case 'done':
			status.textContent = 'Response generated!';
			break;
		case 'error':
			status.className = 'error';
			status.textContent = 'Failed (' + f.kind + '): ' + f.message;
			if (f.transcript) transcript.textContent = f.transcript;
			break;
		}
	};
	sock.onerror = () => { status.className = 'error'; status.textContent = 'Connection error.'; };
});
</script>
</body>
</html>
`
